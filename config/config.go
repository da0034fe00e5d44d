// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads pipeline settings from defaults, an optional YAML
// file and POSTFLOW_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/poiesic/postflow/core"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "POSTFLOW_"

// ErrInvalidConfig indicates a configuration failed validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds configuration for a pipeline run.
type Config struct {
	// DataDir holds the BadgerDB stores and the SQLite document store.
	DataDir string `yaml:"data_dir" env:"DATA_DIR" validate:"required"`

	// RecordsFile is a JSON array of raw records.
	RecordsFile string `yaml:"records_file" env:"RECORDS_FILE"`

	// ImageDir holds photo payloads named <photo id>.<ext>.
	// Empty means posts are ingested without images.
	ImageDir string `yaml:"image_dir" env:"IMAGE_DIR"`

	AppName    string `yaml:"app_name" env:"APP_NAME" validate:"required"`
	GraphName  string `yaml:"graph_name" env:"GRAPH_NAME" validate:"required"`
	Collection string `yaml:"collection" env:"COLLECTION" validate:"required"`

	// GraphVisibility is the formal label the graph schema is created with.
	// Default: "U"
	GraphVisibility string `yaml:"graph_visibility" env:"GRAPH_VISIBILITY" validate:"formal"`

	// SecurityID and Token make up the credential presented to every store.
	SecurityID string `yaml:"security_id" env:"SECURITY_ID" validate:"required"`
	Token      string `yaml:"token" env:"TOKEN"`

	// PauseMS is the delay between ticks in milliseconds. 0 disables it.
	// Default: 100
	PauseMS int `yaml:"pause_ms" env:"PAUSE_MS" validate:"gte=0"`

	// PoolSize is the fan-out worker count. 0 means one worker per sink.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE" validate:"gte=0"`

	// SinkTimeout bounds each sink delivery. 0 disables it.
	SinkTimeout time.Duration `yaml:"sink_timeout" env:"SINK_TIMEOUT" validate:"gte=0"`

	// RegistryMaxAttempts and RegistryBaseDelay control retries of registry
	// transport failures.
	RegistryMaxAttempts int           `yaml:"registry_max_attempts" env:"REGISTRY_MAX_ATTEMPTS" validate:"gte=1"`
	RegistryBaseDelay   time.Duration `yaml:"registry_base_delay" env:"REGISTRY_BASE_DELAY" validate:"gte=0"`

	// AgeOffRules are attached to every registration.
	AgeOffRules []string `yaml:"age_off_rules" env:"AGE_OFF_RULES" validate:"dive,required"`

	// BreakerFailures is the consecutive failure count that opens a sink's
	// circuit. 0 disables circuit breaking.
	BreakerFailures uint32        `yaml:"breaker_failures" env:"BREAKER_FAILURES"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" env:"BREAKER_TIMEOUT" validate:"gte=0"`

	// Checkpoint resumes from, and persists, the record index.
	Checkpoint bool `yaml:"checkpoint" env:"CHECKPOINT"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDataDir sets the data directory.
func WithDataDir(dir string) ConfigOption {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithToken sets the security token.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithPause sets the inter-tick pause.
func WithPause(pause time.Duration) ConfigOption {
	return func(c *Config) {
		c.PauseMS = int(pause / time.Millisecond)
	}
}

// WithRecordsFile sets the records file.
func WithRecordsFile(path string) ConfigOption {
	return func(c *Config) {
		c.RecordsFile = path
	}
}

// WithImageDir sets the image directory.
func WithImageDir(dir string) ConfigOption {
	return func(c *Config) {
		c.ImageDir = dir
	}
}

// DefaultConfig returns a Config with the default values. DataDir has no default.
func DefaultConfig() *Config {
	return &Config{
		AppName:             "postflow",
		GraphName:           "postflow-graph",
		Collection:          "posts",
		GraphVisibility:     core.LevelUnclassified.String(),
		SecurityID:          "postflow",
		PauseMS:             100,
		RegistryMaxAttempts: 3,
		RegistryBaseDelay:   100 * time.Millisecond,
		BreakerFailures:     5,
		BreakerTimeout:      30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty) and POSTFLOW_ environment variables. The overrides are
// applied last, then the result is validated.
func Load(path string, overrides ...ConfigOption) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	for _, opt := range overrides {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize puts the configuration in canonical form.
func (c *Config) Normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir != "" {
		c.DataDir = filepath.Clean(c.DataDir)
	}
	c.GraphVisibility = strings.TrimSpace(c.GraphVisibility)
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Pause returns the inter-tick pause.
func (c *Config) Pause() time.Duration {
	return time.Duration(c.PauseMS) * time.Millisecond
}

// Visibility returns the graph schema visibility. The label must have
// passed validation.
func (c *Config) Visibility() core.Visibility {
	level, err := core.ParseLevel(c.GraphVisibility)
	if err != nil {
		level = core.LevelUnclassified
	}
	return core.NewVisibility(level, false)
}

// BadgerDir is where the BadgerDB stores live.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "badger")
}

// DocumentsPath is the SQLite document store file.
func (c *Config) DocumentsPath() string {
	return filepath.Join(c.DataDir, "documents.sqlite")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// the lattice labels contain '|' and '&', which oneof cannot express
	_ = v.RegisterValidation("formal", func(fl validator.FieldLevel) bool {
		_, err := core.ParseLevel(fl.Field().String())
		return err == nil
	})
	return v
}
