package storage

import (
	"context"
	"time"

	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/graph"
	"github.com/poiesic/postflow/security"
)

// Registration asks a Registry for a provenance id.
type Registration struct {
	URI         string
	Parents     []string // URIs of already registered parent documents
	AgeOffRules []string // Names of age-off rules the registry must know
}

// LineageRecord is a registered document as stored by a Registry.
type LineageRecord struct {
	ID          core.ProvenanceID   `json:"id"`
	URI         string              `json:"uri"`
	Parents     []core.ProvenanceID `json:"parents,omitempty"`
	AgeOffRules []string            `json:"age_off_rules,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Registry assigns provenance ids and tracks document lineage.
// Implementations must be thread-safe.
type Registry interface {
	// Register assigns a new id to reg.URI.
	// Returns ErrDuplicateDocument if the URI is already registered,
	// ErrMissingParent if a parent URI is unknown, ErrCyclicLineage if the
	// parents would make the document its own ancestor, ErrRuleNotFound for
	// an unknown age-off rule and ErrTransport when the registry cannot be
	// reached.
	Register(ctx context.Context, cred security.Credential, reg Registration) (core.ProvenanceID, error)

	// Lookup returns the lineage record for uri.
	// Returns ErrNotFound if the URI was never registered.
	Lookup(ctx context.Context, cred security.Credential, uri string) (*LineageRecord, error)

	// Close releases resources held by the registry.
	Close() error
}

// Document is a stored record in a DocumentStore.
type Document struct {
	ID         string
	Collection string
	Body       []byte
	Visibility core.Visibility
	InsertedAt time.Time
}

// DocumentStore persists raw post payloads.
type DocumentStore interface {
	// Insert stores document in collection and returns its generated id.
	Insert(ctx context.Context, cred security.Credential, collection string, document []byte, vis core.Visibility) (string, error)

	// Get retrieves a document by id.
	// Returns ErrNotFound if the document doesn't exist.
	Get(ctx context.Context, cred security.Credential, collection, id string) (*Document, error)

	// Count returns the number of documents in collection.
	Count(ctx context.Context, cred security.Credential, collection string) (int, error)

	// Close closes the store.
	Close() error
}

// GraphStore persists relationship graphs. Vertex writes are upserts keyed
// by vertex id; writing the same edge twice is a no-op.
type GraphStore interface {
	// EnsureSchema creates the graph schema.
	// Returns ErrSchemaExists if a schema for the graph is already present.
	EnsureSchema(ctx context.Context, cred security.Credential, schema graph.Schema) error

	// WriteGraph merges g into the named graph.
	// Returns ErrUnknownLabel if an edge label is not declared by the schema.
	WriteGraph(ctx context.Context, cred security.Credential, graphName string, vis core.Visibility, g *graph.Graph) error

	// Vertex returns the merged vertex with id.
	// Returns ErrNotFound if the vertex doesn't exist.
	Vertex(ctx context.Context, cred security.Credential, graphName, id string) (*graph.Vertex, error)

	// Edges returns the outgoing edges of a vertex, ordered by label then target.
	Edges(ctx context.Context, cred security.Credential, graphName, vertexID string) ([]graph.Edge, error)

	// Close releases resources held by the store.
	Close() error
}

// ImageDocument is one image submitted to an ImageIndex.
type ImageDocument struct {
	FileName   string          `json:"file_name"`
	SourceURI  string          `json:"source_uri"`
	ParentURI  string          `json:"parent_uri"`
	Blob       []byte          `json:"blob"`
	Visibility core.Visibility `json:"visibility"`
}

// IngestResult reports the stable ids assigned to one submitted image.
type IngestResult struct {
	FileName string
	ImageIDs []core.ImageID
}

// ImageIndex stores images under content-addressed ids.
type ImageIndex interface {
	// IngestDocuments stores docs and returns one result per document,
	// in submission order. Ingesting the same content twice is idempotent.
	IngestDocuments(ctx context.Context, cred security.Credential, docs []ImageDocument) ([]IngestResult, error)

	// Close releases resources held by the index.
	Close() error
}

// CheckpointStore persists dispatcher progress.
type CheckpointStore interface {
	// SaveCheckpoint persists a checkpoint, replacing any earlier one with the same name.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint with name.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)
}
