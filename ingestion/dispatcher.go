package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/postflow/classify"
	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/provenance"
	"github.com/poiesic/postflow/record"
	"github.com/poiesic/postflow/sink"
	"github.com/poiesic/postflow/source"
	"github.com/poiesic/postflow/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/poiesic/postflow/ingestion"

// DefaultPause is the delay between ticks used by Run.
const DefaultPause = 100 * time.Millisecond

// State is the dispatcher's position in its lifecycle.
type State int

const (
	// StatePending means records remain to be processed.
	StatePending State = iota
	// StateDraining means the source is exhausted and the finished signal is due.
	StateDraining
	// StateIdle means the finished signal has fired. Ticks do nothing.
	StateIdle
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDraining:
		return "draining"
	case StateIdle:
		return "idle"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Dispatcher processes one record per tick and fans the result out to its sinks.
type Dispatcher struct {
	src        source.Source
	images     source.ImageLoader
	classifier *classify.Classifier
	registrar  *provenance.Registrar
	sinks      []sink.Sink
	annotate   func(raw []byte, id core.ProvenanceID, images []core.ImageID) ([]byte, error)

	pool        *ants.Pool
	poolSize    int
	sinkTimeout time.Duration
	pause       time.Duration

	checkpoints    storage.CheckpointStore
	checkpointName string
	progress       *ProgressTracker
	onFinished     func()

	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	// tickMu serializes ticks.
	tickMu sync.Mutex

	mu       sync.Mutex
	state    State
	index    int
	released bool

	// stopCh holds at most one pending stop request.
	stopCh chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithSinks attaches the sinks every processed post is delivered to.
func WithSinks(sinks ...sink.Sink) Option {
	return func(d *Dispatcher) error {
		d.sinks = append(d.sinks, sinks...)
		return nil
	}
}

// WithImageLoader sets how photo references are resolved to images.
// Default leaves posts without images.
func WithImageLoader(loader source.ImageLoader) Option {
	return func(d *Dispatcher) error {
		if loader == nil {
			loader = source.NoImages{}
		}
		d.images = loader
		return nil
	}
}

// WithPoolSize sets the fan-out worker pool size.
// Sizes below the number of sinks are raised to it.
func WithPoolSize(size int) Option {
	return func(d *Dispatcher) error {
		d.poolSize = size
		return nil
	}
}

// WithSinkTimeout bounds each sink delivery. Zero means no timeout.
func WithSinkTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) error {
		d.sinkTimeout = timeout
		return nil
	}
}

// WithPause sets the delay between ticks in Run. Zero means no pause.
// Default is DefaultPause.
func WithPause(pause time.Duration) Option {
	return func(d *Dispatcher) error {
		if pause < 0 {
			pause = 0
		}
		d.pause = pause
		return nil
	}
}

// WithCheckpoints resumes from and persists the record index under name.
func WithCheckpoints(store storage.CheckpointStore, name string) Option {
	return func(d *Dispatcher) error {
		d.checkpoints = store
		d.checkpointName = name
		return nil
	}
}

// WithProgress reports the record index to tracker.
func WithProgress(tracker *ProgressTracker) Option {
	return func(d *Dispatcher) error {
		d.progress = tracker
		return nil
	}
}

// WithOnFinished sets a hook fired once when the source is exhausted.
func WithOnFinished(fn func()) Option {
	return func(d *Dispatcher) error {
		d.onFinished = fn
		return nil
	}
}

// WithMetrics sets the collectors the dispatcher updates.
// Default registers a fresh set with a private registry.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) error {
		d.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used for tick and delivery spans.
// Default is the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) error {
		d.tracer = tracer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDispatcher creates a dispatcher reading from src. When checkpoints are
// configured, the stored index is loaded and processing resumes there.
func NewDispatcher(
	ctx context.Context,
	src source.Source,
	classifier *classify.Classifier,
	registrar *provenance.Registrar,
	opts ...Option,
) (*Dispatcher, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	if registrar == nil {
		return nil, ErrRegistrarRequired
	}

	d := &Dispatcher{
		src:        src,
		images:     source.NoImages{},
		classifier: classifier,
		registrar:  registrar,
		annotate:   record.Annotate,
		pause:      DefaultPause,
		logger:     slog.Default(),
		stopCh:     make(chan struct{}, 1),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "dispatcher")

	if d.metrics == nil {
		m, err := NewMetrics(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		d.metrics = m
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}

	if d.checkpoints != nil {
		cp, err := d.checkpoints.LoadCheckpoint(ctx, d.checkpointName)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil {
			d.index = min(cp.Index, src.Len())
			d.logger.Info("resuming from checkpoint", "name", cp.Name, "index", d.index)
		}
	}
	if d.index >= src.Len() {
		d.state = StateDraining
	}

	size := max(d.poolSize, len(d.sinks), 1)
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	d.pool = pool

	d.metrics.index.Set(float64(d.index))
	if d.progress != nil {
		d.progress.Start(d.index)
	}
	return d, nil
}

// InitSinks prepares every sink's backing store. All sinks are initialized
// even when one fails; the failures are joined.
func (d *Dispatcher) InitSinks(ctx context.Context) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Init(ctx); err != nil {
			d.logger.Error("sink init failed", "sink", s.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Index returns the index of the next record to process.
func (d *Dispatcher) Index() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index
}

// Tick advances the dispatcher by one step. A tick in progress is not
// cancelled by ctx; only sink timeouts bound it.
func (d *Dispatcher) Tick(ctx context.Context) error {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return ErrDispatcherReleased
	}
	state, index := d.state, d.index
	d.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	switch state {
	case StatePending:
		d.process(ctx, index)
		d.advance(ctx, index+1)
	case StateDraining:
		d.logger.Info("finished", "records", d.src.Len())
		if d.progress != nil {
			d.progress.Finish()
		}
		d.setState(StateIdle)
		if d.onFinished != nil {
			d.onFinished()
		}
	case StateIdle:
	}
	return nil
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// advance moves to next and persists it when checkpointing.
func (d *Dispatcher) advance(ctx context.Context, next int) {
	d.mu.Lock()
	d.index = next
	if next >= d.src.Len() {
		d.state = StateDraining
	}
	d.mu.Unlock()

	d.metrics.index.Set(float64(next))
	if d.progress != nil {
		d.progress.Update(next)
	}
	if d.checkpoints == nil {
		return
	}
	err := d.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Name:      d.checkpointName,
		Index:     next,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		d.logger.Error("failed to save checkpoint", "index", next, "error", err)
	}
}

// process runs record index through the pipeline. Failures before fan-out
// skip the record.
func (d *Dispatcher) process(ctx context.Context, index int) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "ingestion.tick", trace.WithAttributes(attribute.Int("record.index", index)))
	defer func() {
		span.End()
		d.metrics.tickDuration.Observe(time.Since(start).Seconds())
	}()

	logger := d.logger.With("index", index)

	post, vis, err := d.prepare(ctx, index)
	if err != nil {
		outcome := OutcomeFailed
		var regErr *provenance.RegistrationError
		switch {
		case errors.Is(err, core.ErrMalformedRecord), errors.Is(err, core.ErrInvalidPost):
			outcome = OutcomeMalformed
		case errors.As(err, &regErr):
			outcome = OutcomeRejected
		}
		if outcome == OutcomeFailed {
			logger.Error("record abandoned", "error", err)
		} else {
			logger.Warn("record skipped", "outcome", outcome, "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		d.metrics.record(outcome)
		if d.progress != nil {
			d.progress.Skip()
		}
		return
	}

	span.SetAttributes(
		attribute.String("post.id", post.ID),
		attribute.Int64("post.provenance_id", int64(post.ProvenanceID)),
		attribute.String("visibility", vis.Formal()),
	)
	d.fanOut(ctx, sink.Delivery{Post: post, Visibility: vis, Document: post.Raw})
	d.metrics.record(OutcomeDelivered)
	logger.Debug("record delivered", "post", post.ID, "id", post.ProvenanceID, "visibility", vis.String())
}

// prepare parses, classifies, registers and annotates record index.
func (d *Dispatcher) prepare(ctx context.Context, index int) (*core.Post, core.Visibility, error) {
	raw, err := d.src.Record(index)
	if err != nil {
		return nil, core.Visibility{}, fmt.Errorf("failed to read record: %w", err)
	}

	post, err := record.Parse(raw)
	if err != nil {
		return nil, core.Visibility{}, err
	}
	if err := core.ValidatePost(post); err != nil {
		return nil, core.Visibility{}, err
	}
	if err := d.images.LoadImages(post); err != nil {
		return nil, core.Visibility{}, err
	}

	vis := d.classifier.Classify(post.Source, post.HasAttachments())

	// payloads that cannot be annotated are rejected before an id is assigned
	imageIDs := post.ImageIDs()
	if _, err := d.annotate(post.Raw, 0, imageIDs); err != nil {
		return nil, core.Visibility{}, fmt.Errorf("%w: %w", core.ErrMalformedRecord, err)
	}

	if _, err := d.registrar.RegisterPost(ctx, post); err != nil {
		return nil, core.Visibility{}, err
	}

	annotated, err := d.annotate(post.Raw, post.ProvenanceID, imageIDs)
	if err != nil {
		return nil, core.Visibility{}, fmt.Errorf("failed to annotate registered post %s (provenance id %d): %w", post.ID, post.ProvenanceID, err)
	}
	post.Raw = annotated

	return post, vis, nil
}

// fanOut delivers d to every sink on the worker pool and waits for all of
// them. A sink that fails or panics does not affect the others.
func (d *Dispatcher) fanOut(ctx context.Context, delivery sink.Delivery) {
	var wg sync.WaitGroup
	for _, s := range d.sinks {
		wg.Add(1)
		err := d.pool.Submit(func() {
			defer wg.Done()
			d.deliver(ctx, s, delivery)
		})
		if err != nil {
			wg.Done()
			d.logger.Error("failed to submit delivery", "sink", s.Name(), "error", err)
			d.metrics.delivery(s.Name(), StatusError)
		}
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, s sink.Sink, delivery sink.Delivery) {
	ctx, span := d.tracer.Start(ctx, "sink.deliver", trace.WithAttributes(attribute.String("sink", s.Name())))
	defer span.End()

	if d.sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sinkTimeout)
		defer cancel()
	}

	status := StatusOK
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				status = StatusPanic
				err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
			}
		}()
		return s.Deliver(ctx, delivery)
	}()

	if err != nil {
		if status == StatusOK {
			status = StatusError
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		d.logger.Error("sink delivery failed", "sink", s.Name(), "post", delivery.Post.ID, "error", err)
	}
	d.metrics.delivery(s.Name(), status)
}

// Run ticks until the dispatcher is idle, Stop is called or ctx is done,
// pausing between ticks. It returns ctx.Err() when ctx ends the run.
// After a Stop, calling Run again resumes from the current index.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stopCh:
			return nil
		default:
		}

		if err := d.Tick(ctx); err != nil {
			return err
		}
		if d.State() == StateIdle {
			return nil
		}

		if d.pause <= 0 {
			continue
		}
		timer := time.NewTimer(d.pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-d.stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Stop makes the running Run, or the next one if none is running, return
// at the next tick boundary. Requests made while one is pending are merged.
func (d *Dispatcher) Stop() {
	select {
	case d.stopCh <- struct{}{}:
	default:
	}
}

// Release stops the dispatcher and releases the worker pool.
// The dispatcher should not be used after calling Release.
func (d *Dispatcher) Release() {
	d.Stop()
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return
	}
	d.released = true
	d.mu.Unlock()

	if d.pool != nil {
		d.pool.Release()
	}
}
