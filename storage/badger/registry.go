package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

// Registry implements storage.Registry for BadgerDB.
type Registry struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.Registry = (*Registry)(nil)

// NewRegistry creates a new Registry.
func NewRegistry(backend *Backend) (*Registry, error) {
	idSeq, err := backend.GetSequence(lineageIDSeq)
	if err != nil {
		return nil, err
	}

	return &Registry{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *Registry) Close() error {
	return r.idSeq.Release()
}

// AddAgeOffRule makes name available to registrations.
func (r *Registry) AddAgeOffRule(ctx context.Context, name string) error {
	return r.backend.update(func(tx *badger.Txn) error {
		return tx.Set(makeAgeOffRuleKey(name), nil)
	})
}

// Register assigns a new provenance id to reg.URI.
func (r *Registry) Register(ctx context.Context, cred security.Credential, reg storage.Registration) (core.ProvenanceID, error) {
	if err := cred.Check(); err != nil {
		return 0, err
	}
	if reg.URI == "" {
		return 0, fmt.Errorf("%w: uri is empty", storage.ErrInvalidRegistration)
	}

	var record *storage.LineageRecord
	err := r.backend.update(func(tx *badger.Txn) error {
		if _, err := getValue(tx, makeLineageURIKey(reg.URI)); err == nil {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateDocument, reg.URI)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		for _, rule := range reg.AgeOffRules {
			if _, err := getValue(tx, makeAgeOffRuleKey(rule)); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("%w: %s", storage.ErrRuleNotFound, rule)
				}
				return err
			}
		}

		parents, err := r.resolveParents(tx, reg)
		if err != nil {
			return err
		}

		id, err := nextID(r.idSeq)
		if err != nil {
			return err
		}

		record = &storage.LineageRecord{
			ID:          core.ProvenanceID(id),
			URI:         reg.URI,
			Parents:     parents,
			AgeOffRules: reg.AgeOffRules,
			CreatedAt:   time.Now().UTC(),
		}
		value, err := storage.MarshalLineage(record)
		if err != nil {
			return err
		}
		if err := tx.Set(makeLineageKey(record.ID), value); err != nil {
			return err
		}
		return tx.Set(makeLineageURIKey(reg.URI), storage.MarshalProvenanceID(record.ID))
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

// resolveParents maps parent URIs to ids. A document cannot list itself as
// a parent, and since reg.URI is not registered yet no existing record can
// name it as an ancestor. Must be called within a transaction.
func (r *Registry) resolveParents(tx *badger.Txn, reg storage.Registration) ([]core.ProvenanceID, error) {
	var parents []core.ProvenanceID
	for _, uri := range reg.Parents {
		if uri == reg.URI {
			return nil, fmt.Errorf("%w: %s lists itself as parent", storage.ErrCyclicLineage, uri)
		}
		val, err := getValue(tx, makeLineageURIKey(uri))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", storage.ErrMissingParent, uri)
			}
			return nil, err
		}
		id, err := storage.UnmarshalProvenanceID(val)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(parents, id) {
			parents = append(parents, id)
		}
	}
	return parents, nil
}

// Lookup returns the lineage record registered for uri.
func (r *Registry) Lookup(ctx context.Context, cred security.Credential, uri string) (*storage.LineageRecord, error) {
	if err := cred.Check(); err != nil {
		return nil, err
	}

	var record *storage.LineageRecord
	err := r.backend.view(func(tx *badger.Txn) error {
		var err error
		record, err = r.readByURI(tx, uri)
		return err
	})
	return record, err
}

// Ancestry returns the record for uri followed by all of its ancestors,
// breadth first. Returns storage.ErrCyclicLineage if an ancestor repeats
// along a single path.
func (r *Registry) Ancestry(ctx context.Context, cred security.Credential, uri string) ([]*storage.LineageRecord, error) {
	if err := cred.Check(); err != nil {
		return nil, err
	}

	var chain []*storage.LineageRecord
	err := r.backend.view(func(tx *badger.Txn) error {
		start, err := r.readByURI(tx, uri)
		if err != nil {
			return err
		}

		type step struct {
			record *storage.LineageRecord
			path   []core.ProvenanceID
		}
		queue := []step{{record: start, path: []core.ProvenanceID{start.ID}}}
		emitted := make(map[core.ProvenanceID]bool)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if !emitted[cur.record.ID] {
				emitted[cur.record.ID] = true
				chain = append(chain, cur.record)
			}
			for _, pid := range cur.record.Parents {
				if slices.Contains(cur.path, pid) {
					return fmt.Errorf("%w: %d", storage.ErrCyclicLineage, pid)
				}
				parent, err := r.readByID(tx, pid)
				if err != nil {
					return err
				}
				queue = append(queue, step{record: parent, path: append(slices.Clone(cur.path), pid)})
			}
		}
		return nil
	})
	return chain, err
}

func (r *Registry) readByURI(tx *badger.Txn, uri string) (*storage.LineageRecord, error) {
	val, err := getValue(tx, makeLineageURIKey(uri))
	if err != nil {
		return nil, err
	}
	id, err := storage.UnmarshalProvenanceID(val)
	if err != nil {
		return nil, err
	}
	return r.readByID(tx, id)
}

func (r *Registry) readByID(tx *badger.Txn, id core.ProvenanceID) (*storage.LineageRecord, error) {
	val, err := getValue(tx, makeLineageKey(id))
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalLineage(val)
}
