package provenance

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
)

// RetryingRegistry retries transport failures of the wrapped registry.
type RetryingRegistry struct {
	next        storage.Registry
	maxAttempts int
	baseDelay   time.Duration
}

var _ storage.Registry = (*RetryingRegistry)(nil)

// NewRetryingRegistry wraps next. maxAttempts below 1 is treated as 1.
func NewRetryingRegistry(next storage.Registry, maxAttempts int, baseDelay time.Duration) *RetryingRegistry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingRegistry{next: next, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

func isTransport(err error) bool {
	return errors.Is(err, storage.ErrTransport)
}

func (r *RetryingRegistry) Register(ctx context.Context, cred security.Credential, reg storage.Registration) (core.ProvenanceID, error) {
	var id core.ProvenanceID
	err := RetryWithBackoff(ctx, func() error {
		var err error
		id, err = r.next.Register(ctx, cred, reg)
		return err
	}, r.maxAttempts, r.baseDelay, isTransport)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *RetryingRegistry) Lookup(ctx context.Context, cred security.Credential, uri string) (*storage.LineageRecord, error) {
	var record *storage.LineageRecord
	err := RetryWithBackoff(ctx, func() error {
		var err error
		record, err = r.next.Lookup(ctx, cred, uri)
		return err
	}, r.maxAttempts, r.baseDelay, isTransport)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *RetryingRegistry) Close() error {
	return r.next.Close()
}
