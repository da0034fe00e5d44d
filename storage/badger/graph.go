package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/graph"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

// GraphStore implements storage.GraphStore for BadgerDB.
type GraphStore struct {
	backend *Backend
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore.
func NewGraphStore(backend *Backend) *GraphStore {
	return &GraphStore{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (s *GraphStore) Close() error {
	return nil
}

// EnsureSchema stores schema unless one already exists for the graph.
func (s *GraphStore) EnsureSchema(ctx context.Context, cred security.Credential, schema graph.Schema) error {
	if err := cred.Check(); err != nil {
		return err
	}

	return s.backend.update(func(tx *badger.Txn) error {
		key := makeSchemaKey(schema.GraphName)
		if _, err := getValue(tx, key); err == nil {
			return fmt.Errorf("%w: %s", storage.ErrSchemaExists, schema.GraphName)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		value, err := storage.MarshalSchema(&schema)
		if err != nil {
			return err
		}
		return tx.Set(key, value)
	})
}

// WriteGraph merges g into the named graph. Vertex properties are upserted
// by key, edges are written once per (out, label, in, post). Elements and
// properties without a visibility inherit vis.
func (s *GraphStore) WriteGraph(ctx context.Context, cred security.Credential, graphName string, vis core.Visibility, g *graph.Graph) error {
	if err := cred.Check(); err != nil {
		return err
	}
	if g.Empty() {
		return nil
	}

	return s.backend.update(func(tx *badger.Txn) error {
		schema, err := s.readSchema(tx, graphName)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if schema != nil {
			for _, e := range g.Edges {
				if !schema.AllowsLabel(e.Label) {
					return fmt.Errorf("%w: %s", storage.ErrUnknownLabel, e.Label)
				}
			}
		}

		for _, v := range g.Vertices {
			if err := s.upsertVertex(tx, graphName, v, vis); err != nil {
				return err
			}
		}

		for _, e := range g.Edges {
			e.Properties = stampProperties(e.Properties, vis)
			if e.Visibility.Level() == 0 {
				e.Visibility = vis
			}
			value, err := storage.MarshalEdge(&e)
			if err != nil {
				return err
			}
			if err := tx.Set(makeEdgeKey(graphName, e), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// upsertVertex merges v into any stored vertex with the same ID.
// Must be called within a read-write transaction.
func (s *GraphStore) upsertVertex(tx *badger.Txn, graphName string, v graph.Vertex, vis core.Visibility) error {
	key := makeVertexKey(graphName, v.ID)
	merged := v
	merged.Properties = nil

	val, err := getValue(tx, key)
	switch {
	case err == nil:
		existing, err := storage.UnmarshalVertex(val)
		if err != nil {
			return err
		}
		merged.Properties = existing.Properties
		if merged.Selector == "" {
			merged.Selector = existing.Selector
		}
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	for _, p := range stampProperties(v.Properties, vis) {
		replaced := false
		for i := range merged.Properties {
			if merged.Properties[i].Key == p.Key {
				merged.Properties[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Properties = append(merged.Properties, p)
		}
	}

	value, err := storage.MarshalVertex(&merged)
	if err != nil {
		return err
	}
	return tx.Set(key, value)
}

// Vertex returns the merged vertex with id.
func (s *GraphStore) Vertex(ctx context.Context, cred security.Credential, graphName, id string) (*graph.Vertex, error) {
	if err := cred.Check(); err != nil {
		return nil, err
	}

	var vertex *graph.Vertex
	err := s.backend.view(func(tx *badger.Txn) error {
		val, err := getValue(tx, makeVertexKey(graphName, id))
		if err != nil {
			return err
		}
		vertex, err = storage.UnmarshalVertex(val)
		return err
	})
	return vertex, err
}

// Edges returns the outgoing edges of vertexID.
func (s *GraphStore) Edges(ctx context.Context, cred security.Credential, graphName, vertexID string) ([]graph.Edge, error) {
	if err := cred.Check(); err != nil {
		return nil, err
	}

	var edges []graph.Edge
	err := s.backend.view(func(tx *badger.Txn) error {
		return scan(tx, makePartialEdgeKey(graphName, vertexID), func(_, val []byte) error {
			e, err := storage.UnmarshalEdge(val)
			if err != nil {
				return err
			}
			edges = append(edges, *e)
			return nil
		})
	})
	return edges, err
}

// Schema returns the stored schema for graphName.
// Returns storage.ErrNotFound if EnsureSchema was never called.
func (s *GraphStore) Schema(ctx context.Context, graphName string) (*graph.Schema, error) {
	var schema *graph.Schema
	err := s.backend.view(func(tx *badger.Txn) error {
		var err error
		schema, err = s.readSchema(tx, graphName)
		return err
	})
	return schema, err
}

func (s *GraphStore) readSchema(tx *badger.Txn, graphName string) (*graph.Schema, error) {
	val, err := getValue(tx, makeSchemaKey(graphName))
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalSchema(val)
}

// stampProperties returns props with vis applied to any property lacking a
// visibility.
func stampProperties(props []graph.Property, vis core.Visibility) []graph.Property {
	out := make([]graph.Property, len(props))
	for i, p := range props {
		if p.Visibility.Level() == 0 {
			p.Visibility = vis
		}
		out[i] = p
	}
	return out
}
