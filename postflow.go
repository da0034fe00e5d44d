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

// Package postflow wires the ingestion pipeline to its stores.
//
// Initialize opens the BadgerDB stores and the SQLite document store under
// the configured data directory, obtains the security credential, and
// builds a dispatcher with the document, graph and image sinks attached.
package postflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/postflow/classify"
	"github.com/poiesic/postflow/config"
	"github.com/poiesic/postflow/graph"
	"github.com/poiesic/postflow/ingestion"
	"github.com/poiesic/postflow/provenance"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/sink"
	"github.com/poiesic/postflow/source"
	"github.com/poiesic/postflow/storage/badger"
	"github.com/poiesic/postflow/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline is an initialized ingestion run.
type Pipeline struct {
	cfg        *config.Config
	cred       security.Credential
	stores     *badger.Stores
	documents  *sqlite.Store
	registrar  *provenance.Registrar
	dispatcher *ingestion.Dispatcher
	registry   *prometheus.Registry
	logger     *slog.Logger
}

// Option configures Initialize.
type Option func(*options)

type options struct {
	issuer     security.Issuer
	logger     *slog.Logger
	registry   *prometheus.Registry
	tracer     trace.Tracer
	progress   *ingestion.ProgressTracker
	onFinished func()
}

// WithIssuer sets where the credential is fetched from.
// Default is a security.Static issuer holding the configured token.
func WithIssuer(issuer security.Issuer) Option {
	return func(o *options) {
		o.issuer = issuer
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsRegistry registers the pipeline collectors with registry.
// Default is a fresh registry, available from Metrics.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithTracer sets the tracer for dispatcher spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithProgress reports dispatcher progress to tracker.
func WithProgress(tracker *ingestion.ProgressTracker) Option {
	return func(o *options) {
		o.progress = tracker
	}
}

// WithOnFinished sets a hook fired once when src is exhausted.
func WithOnFinished(fn func()) Option {
	return func(o *options) {
		o.onFinished = fn
	}
}

// Initialize builds a pipeline reading from src. Any failure, including a
// missing credential, closes everything opened so far.
func Initialize(ctx context.Context, cfg *config.Config, src source.Source, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.issuer == nil {
		o.issuer = &security.Static{Token: cfg.Token}
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(collectors.NewGoCollector())
	}

	p := &Pipeline{
		cfg:      cfg,
		registry: o.registry,
		logger:   o.logger.With("component", "postflow"),
	}
	if err := p.open(ctx, src, o); err != nil {
		if cerr := p.Cleanup(); cerr != nil {
			p.logger.Error("error closing after failed initialization", "err", cerr)
		}
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) open(ctx context.Context, src source.Source, o *options) error {
	cfg := p.cfg
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	stores, err := badger.OpenStores(cfg.BadgerDir(), false, badger.WithLogger(o.logger))
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	p.stores = stores

	documents, err := sqlite.Open(cfg.DocumentsPath())
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	p.documents = documents

	cred, err := o.issuer.Fetch(ctx, cfg.SecurityID)
	if err != nil {
		return err
	}
	p.cred = cred
	p.logger.Info("credential obtained", "credential", cred.String())

	for _, rule := range cfg.AgeOffRules {
		if err := stores.Registry.AddAgeOffRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to add age-off rule %s: %w", rule, err)
		}
	}

	registry := provenance.NewRetryingRegistry(stores.Registry, cfg.RegistryMaxAttempts, cfg.RegistryBaseDelay)
	registrar, err := provenance.NewRegistrar(registry, cred,
		provenance.WithAgeOffRules(cfg.AgeOffRules...),
		provenance.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}
	p.registrar = registrar

	classifier, err := classify.New()
	if err != nil {
		return err
	}

	sinks, err := p.sinks(o.logger)
	if err != nil {
		return err
	}

	metrics, err := ingestion.NewMetrics(p.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	dispatcherOpts := []ingestion.Option{
		ingestion.WithSinks(sinks...),
		ingestion.WithPause(cfg.Pause()),
		ingestion.WithPoolSize(cfg.PoolSize),
		ingestion.WithSinkTimeout(cfg.SinkTimeout),
		ingestion.WithMetrics(metrics),
		ingestion.WithLogger(o.logger),
		ingestion.WithProgress(o.progress),
		ingestion.WithOnFinished(o.onFinished),
	}
	if cfg.ImageDir != "" {
		dispatcherOpts = append(dispatcherOpts, ingestion.WithImageLoader(source.DirImageLoader{Dir: cfg.ImageDir}))
	}
	if cfg.Checkpoint {
		dispatcherOpts = append(dispatcherOpts, ingestion.WithCheckpoints(stores.Checkpoints, cfg.AppName))
	}
	if o.tracer != nil {
		dispatcherOpts = append(dispatcherOpts, ingestion.WithTracer(o.tracer))
	}

	dispatcher, err := ingestion.NewDispatcher(ctx, src, classifier, registrar, dispatcherOpts...)
	if err != nil {
		return err
	}
	p.dispatcher = dispatcher

	return dispatcher.InitSinks(ctx)
}

func (p *Pipeline) sinks(logger *slog.Logger) ([]sink.Sink, error) {
	cfg := p.cfg
	documents, err := sink.NewDocumentSink(p.documents, p.cred, cfg.Collection, logger)
	if err != nil {
		return nil, err
	}
	graphs, err := sink.NewGraphSink(p.stores.Graph, p.cred, graph.NewSchema(cfg.AppName, cfg.GraphName, cfg.Visibility()), logger)
	if err != nil {
		return nil, err
	}
	images, err := sink.NewImageSink(p.stores.Images, p.registrar, p.cred, logger)
	if err != nil {
		return nil, err
	}

	sinks := []sink.Sink{documents, graphs, images}
	if cfg.BreakerFailures == 0 {
		return sinks, nil
	}
	for i, s := range sinks {
		sinks[i] = sink.NewBreaker(s, cfg.BreakerFailures, cfg.BreakerTimeout, logger)
	}
	return sinks, nil
}

// Generate processes the next record.
func (p *Pipeline) Generate(ctx context.Context) error {
	return p.dispatcher.Tick(ctx)
}

// Run processes records until the source is exhausted, Stop is called or
// ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.dispatcher.Run(ctx)
}

// Stop ends Run at the next record boundary.
func (p *Pipeline) Stop() {
	p.dispatcher.Stop()
}

// Dispatcher returns the underlying dispatcher.
func (p *Pipeline) Dispatcher() *ingestion.Dispatcher {
	return p.dispatcher
}

// Stores returns the BadgerDB stores.
func (p *Pipeline) Stores() *badger.Stores {
	return p.stores
}

// Documents returns the SQLite document store.
func (p *Pipeline) Documents() *sqlite.Store {
	return p.documents
}

// Credential returns the credential presented to every store.
func (p *Pipeline) Credential() security.Credential {
	return p.cred
}

// Metrics returns the registry holding the pipeline collectors.
func (p *Pipeline) Metrics() *prometheus.Registry {
	return p.registry
}

// Cleanup releases the dispatcher and closes every store that was opened.
// Calling it again is a no-op.
func (p *Pipeline) Cleanup() error {
	var errs []error
	if p.dispatcher != nil {
		p.dispatcher.Release()
		p.dispatcher = nil
	}
	if p.documents != nil {
		if err := p.documents.Close(); err != nil {
			p.logger.Error("error closing document store", "err", err)
			errs = append(errs, err)
		}
		p.documents = nil
	}
	if p.stores != nil {
		if err := p.stores.Close(); err != nil {
			p.logger.Error("error closing stores", "err", err)
			errs = append(errs, err)
		}
		p.stores = nil
	}
	return errors.Join(errs...)
}
