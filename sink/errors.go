package sink

import (
	"errors"
	"fmt"

	"github.com/poiesic/postflow/core"
)

var (
	// ErrCircuitOpen is returned when a sink's circuit breaker rejects a delivery.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrStoreRequired is returned when a sink is created without its store.
	ErrStoreRequired = errors.New("store required")
)

// StoreError reports a failed write to a sink's backing store.
type StoreError struct {
	Sink string
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sink %s: %s: %v", e.Sink, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ConsistencyError reports that the image index returned a different id
// set than the one submitted. Nothing is rolled back.
type ConsistencyError struct {
	PostID     string
	Missing    []core.ImageID // Submitted but not returned
	Unexpected []core.ImageID // Returned but never submitted
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("post %s: image ids diverged: missing %v, unexpected %v", e.PostID, e.Missing, e.Unexpected)
}
