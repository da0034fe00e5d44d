package provenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

const (
	postURIPrefix  = "social://postflow/ingest/post/"
	imageURIPrefix = "social://postflow/ingest/image/"
)

// PostURI returns the registry URI of a post.
func PostURI(postID string) string {
	return postURIPrefix + postID
}

// ImageURI returns the registry URI of an image.
func ImageURI(fileName string) string {
	return imageURIPrefix + fileName
}

// Registrar registers posts and images with a storage.Registry.
// It is safe for concurrent use.
type Registrar struct {
	registry    storage.Registry
	cred        security.Credential
	ageOffRules []string
	runID       string
	logger      *slog.Logger

	mu   sync.Mutex
	seen map[string]core.ProvenanceID
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithAgeOffRules sets the age-off rules attached to every registration.
func WithAgeOffRules(rules ...string) Option {
	return func(r *Registrar) {
		r.ageOffRules = append([]string(nil), rules...)
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewRegistrar creates a Registrar that presents cred on every registry call.
func NewRegistrar(registry storage.Registry, cred security.Credential, opts ...Option) (*Registrar, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	r := &Registrar{
		registry: registry,
		cred:     cred,
		runID:    uuid.NewString(),
		logger:   slog.Default(),
		seen:     make(map[string]core.ProvenanceID),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registrar", "run", r.runID)
	return r, nil
}

// RunID identifies this registrar's run in logs.
func (r *Registrar) RunID() string {
	return r.runID
}

// RegisterPost registers post under its post URI and stores the id on post.
func (r *Registrar) RegisterPost(ctx context.Context, post *core.Post) (core.ProvenanceID, error) {
	id, err := r.register(ctx, PostURI(post.ID), nil)
	if err != nil {
		return 0, err
	}
	post.ProvenanceID = id
	return id, nil
}

// RegisterImage registers img with the post identified by postID as its parent.
func (r *Registrar) RegisterImage(ctx context.Context, postID string, img core.Image) (core.ProvenanceID, error) {
	return r.register(ctx, ImageURI(img.FileName), []string{PostURI(postID)})
}

func (r *Registrar) register(ctx context.Context, uri string, parents []string) (core.ProvenanceID, error) {
	// reserve the URI so concurrent callers cannot both reach the registry
	r.mu.Lock()
	if _, ok := r.seen[uri]; ok {
		r.mu.Unlock()
		return 0, newRegistrationError(uri, fmt.Errorf("%w: already registered in this run", storage.ErrDuplicateDocument))
	}
	r.seen[uri] = 0
	r.mu.Unlock()

	id, err := r.registry.Register(ctx, r.cred, storage.Registration{
		URI:         uri,
		Parents:     parents,
		AgeOffRules: r.ageOffRules,
	})

	r.mu.Lock()
	if err != nil {
		delete(r.seen, uri)
	} else {
		r.seen[uri] = id
	}
	r.mu.Unlock()

	if err != nil {
		return 0, newRegistrationError(uri, err)
	}
	r.logger.Debug("registered", "uri", uri, "id", id)
	return id, nil
}
