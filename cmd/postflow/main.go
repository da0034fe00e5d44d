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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/poiesic/postflow"
	"github.com/poiesic/postflow/config"
	"github.com/poiesic/postflow/ingestion"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/source"
	"github.com/poiesic/postflow/storage/badger"
	"github.com/poiesic/postflow/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "postflow",
		Usage: "Ingest social media posts into provenance-tracked stores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the stores (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Ingest every record in a records file",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "records",
						Aliases: []string{"r"},
						Usage:   "JSON array of raw records (overrides config)",
					},
					&cli.StringFlag{
						Name:  "image-dir",
						Usage: "Directory of photo payloads (overrides config)",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address while running",
					},
				},
			},
			{
				Name:   "graph",
				Usage:  "Print a user vertex and its edges",
				Action: graphCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Screen name of the user",
						Required: true,
					},
				},
			},
			{
				Name:   "lineage",
				Usage:  "Print the provenance chain of a document",
				Action: lineageCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "uri",
						Usage:    "Document URI",
						Required: true,
					},
				},
			},
			{
				Name:   "docs",
				Usage:  "Print a stored post document",
				Action: docsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Document id",
						Required: true,
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context, overrides ...config.ConfigOption) (*config.Config, error) {
	if dir := c.String("data-dir"); dir != "" {
		overrides = append(overrides, config.WithDataDir(dir))
	}
	cfg, err := config.Load(c.String("config"), overrides...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func credential(ctx context.Context, cfg *config.Config) (security.Credential, error) {
	issuer := &security.Static{Token: cfg.Token}
	cred, err := issuer.Fetch(ctx, cfg.SecurityID)
	if err != nil {
		return security.Credential{}, fmt.Errorf("failed to fetch credential: %w", err)
	}
	return cred, nil
}

func runCommand(c *cli.Context) error {
	var overrides []config.ConfigOption
	if records := c.String("records"); records != "" {
		overrides = append(overrides, config.WithRecordsFile(records))
	}
	if dir := c.String("image-dir"); dir != "" {
		overrides = append(overrides, config.WithImageDir(dir))
	}
	cfg, err := loadConfig(c, overrides...)
	if err != nil {
		return err
	}
	if cfg.RecordsFile == "" {
		return fmt.Errorf("records file is required")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	src, err := source.OpenFile(cfg.RecordsFile)
	if err != nil {
		return fmt.Errorf("failed to open records: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := ingestion.NewProgressTracker(c.App.ErrWriter, src.Len(), c.Int("report-interval"))
	p, err := postflow.Initialize(ctx, cfg, src,
		postflow.WithLogger(slog.Default()),
		postflow.WithProgress(tracker),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer func() {
		if err := p.Cleanup(); err != nil {
			slog.Error("error closing pipeline", "err", err)
		}
	}()

	if addr := c.String("metrics-addr"); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(p.Metrics(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", addr, "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintf(c.App.ErrWriter, "Records: %s (%d)\n", cfg.RecordsFile, src.Len())
	fmt.Fprintf(c.App.ErrWriter, "Data dir: %s\n", cfg.DataDir)
	fmt.Fprintln(c.App.ErrWriter)

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func graphCommand(c *cli.Context) error {
	ctx := context.Background()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cred, err := credential(ctx, cfg)
	if err != nil {
		return err
	}

	stores, err := badger.OpenStores(cfg.BadgerDir(), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer stores.Close()

	user := c.String("user")
	vertex, err := stores.Graph.Vertex(ctx, cred, cfg.GraphName, user)
	if err != nil {
		return fmt.Errorf("failed to read vertex %q: %w", user, err)
	}
	edges, err := stores.Graph.Edges(ctx, cred, cfg.GraphName, user)
	if err != nil {
		return fmt.Errorf("failed to read edges of %q: %w", user, err)
	}

	fmt.Fprintf(c.App.Writer, "%s (%s)\n", vertex.ID, vertex.Selector)
	for _, prop := range vertex.Properties {
		fmt.Fprintf(c.App.Writer, "  %s = %s [%s]\n", prop.Key, prop.Value, prop.Visibility)
	}
	for _, e := range edges {
		fmt.Fprintf(c.App.Writer, "  -%s-> %s\n", e.Label, e.In)
	}
	return nil
}

func lineageCommand(c *cli.Context) error {
	ctx := context.Background()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cred, err := credential(ctx, cfg)
	if err != nil {
		return err
	}

	stores, err := badger.OpenStores(cfg.BadgerDir(), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer stores.Close()

	chain, err := stores.Registry.Ancestry(ctx, cred, c.String("uri"))
	if err != nil {
		return fmt.Errorf("failed to read lineage: %w", err)
	}
	for depth, record := range chain {
		line := fmt.Sprintf("%s%d %s", strings.Repeat("  ", depth), record.ID, record.URI)
		if len(record.AgeOffRules) > 0 {
			line += " age-off=" + strings.Join(record.AgeOffRules, ",")
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func docsCommand(c *cli.Context) error {
	ctx := context.Background()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cred, err := credential(ctx, cfg)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DocumentsPath())
	if err != nil {
		return fmt.Errorf("failed to open documents: %w", err)
	}
	defer store.Close()

	doc, err := store.Get(ctx, cred, cfg.Collection, c.String("id"))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	out, err := json.MarshalIndent(struct {
		ID         string              `json:"id"`
		Collection string              `json:"collection"`
		Visibility string              `json:"visibility"`
		InsertedAt time.Time           `json:"inserted_at"`
		Body       jsoniter.RawMessage `json:"body"`
	}{doc.ID, doc.Collection, doc.Visibility.String(), doc.InsertedAt, doc.Body}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
