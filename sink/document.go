package sink

import (
	"context"
	"log/slog"

	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

// DocumentSink stores the annotated raw payload of each post.
type DocumentSink struct {
	store      storage.DocumentStore
	cred       security.Credential
	collection string
	logger     *slog.Logger
}

var _ Sink = (*DocumentSink)(nil)

// NewDocumentSink creates a sink that inserts into collection.
func NewDocumentSink(store storage.DocumentStore, cred security.Credential, collection string, logger *slog.Logger) (*DocumentSink, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentSink{
		store:      store,
		cred:       cred,
		collection: collection,
		logger:     logger.With("component", "sink", "sink", "document"),
	}, nil
}

func (s *DocumentSink) Name() string { return "document" }

func (s *DocumentSink) Init(ctx context.Context) error { return nil }

// Deliver inserts the annotated document with the post's provenance id
// attached to its visibility.
func (s *DocumentSink) Deliver(ctx context.Context, d Delivery) error {
	body := d.Document
	if body == nil {
		body = d.Post.Raw
	}
	vis := d.Visibility.WithProvenanceID(d.Post.ProvenanceID)

	id, err := s.store.Insert(ctx, s.cred, s.collection, body, vis)
	if err != nil {
		return &StoreError{Sink: s.Name(), Op: "insert", Err: err}
	}
	s.logger.Debug("document stored", "post", d.Post.ID, "document", id)
	return nil
}
