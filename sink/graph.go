package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/postflow/graph"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

// GraphSink writes the relationship graph of each post.
type GraphSink struct {
	store  storage.GraphStore
	cred   security.Credential
	schema graph.Schema
	logger *slog.Logger
}

var _ Sink = (*GraphSink)(nil)

// NewGraphSink creates a sink writing into schema.GraphName.
func NewGraphSink(store storage.GraphStore, cred security.Credential, schema graph.Schema, logger *slog.Logger) (*GraphSink, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphSink{
		store:  store,
		cred:   cred,
		schema: schema,
		logger: logger.With("component", "sink", "sink", "graph"),
	}, nil
}

func (s *GraphSink) Name() string { return "graph" }

// Init creates the graph schema. An existing schema is not an error.
func (s *GraphSink) Init(ctx context.Context) error {
	err := s.store.EnsureSchema(ctx, s.cred, s.schema)
	switch {
	case err == nil:
		s.logger.Info("graph schema created", "graph", s.schema.GraphName, "visibility", s.schema.Visibility.Formal())
		return nil
	case errors.Is(err, storage.ErrSchemaExists):
		s.logger.Info("graph schema already exists", "graph", s.schema.GraphName)
		return nil
	default:
		return &StoreError{Sink: s.Name(), Op: "ensure schema", Err: err}
	}
}

// Deliver builds and writes the post's graph.
func (s *GraphSink) Deliver(ctx context.Context, d Delivery) error {
	g := graph.Build(d.Post, d.Visibility)
	if err := s.store.WriteGraph(ctx, s.cred, s.schema.GraphName, d.Visibility, g); err != nil {
		return &StoreError{Sink: s.Name(), Op: "write graph", Err: err}
	}
	s.logger.Debug("graph written", "post", d.Post.ID, "vertices", len(g.Vertices), "edges", len(g.Edges))
	return nil
}
