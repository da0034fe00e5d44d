package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

// ImageIndex implements storage.ImageIndex for BadgerDB.
type ImageIndex struct {
	backend *Backend
}

var _ storage.ImageIndex = (*ImageIndex)(nil)

// NewImageIndex creates a new ImageIndex.
func NewImageIndex(backend *Backend) *ImageIndex {
	return &ImageIndex{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (x *ImageIndex) Close() error {
	return nil
}

// IngestDocuments stores each document under the content-addressed id of
// its bytes and file name. A document whose id is already stored keeps its
// original record.
func (x *ImageIndex) IngestDocuments(ctx context.Context, cred security.Credential, docs []storage.ImageDocument) ([]storage.IngestResult, error) {
	if err := cred.Check(); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if err := doc.Visibility.Validate(); err != nil {
			return nil, fmt.Errorf("image %s: %w", doc.FileName, err)
		}
	}

	results := make([]storage.IngestResult, len(docs))
	err := x.backend.update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for i, doc := range docs {
			id := core.ImageIDFromContent(doc.Blob, doc.FileName)
			results[i] = storage.IngestResult{FileName: doc.FileName, ImageIDs: []core.ImageID{id}}

			key := makeImageKey(id)
			if _, err := getValue(tx, key); err == nil {
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			value, err := storage.MarshalImage(&storage.ImageRecord{
				ID:         id,
				FileName:   doc.FileName,
				SourceURI:  doc.SourceURI,
				ParentURI:  doc.ParentURI,
				Blob:       doc.Blob,
				Visibility: doc.Visibility,
				IngestedAt: now,
			})
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Get returns the stored image with id.
// Returns storage.ErrNotFound if the image doesn't exist.
func (x *ImageIndex) Get(ctx context.Context, cred security.Credential, id core.ImageID) (*storage.ImageRecord, error) {
	if err := cred.Check(); err != nil {
		return nil, err
	}

	var record *storage.ImageRecord
	err := x.backend.view(func(tx *badger.Txn) error {
		val, err := getValue(tx, makeImageKey(id))
		if err != nil {
			return err
		}
		record, err = storage.UnmarshalImage(val)
		return err
	})
	return record, err
}
