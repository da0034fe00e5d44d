// Package sink delivers processed posts to their downstream stores.
//
// Each Sink writes one view of a post: the annotated document, the
// relationship graph or the attached images. Sinks are independent. A
// failure in one never affects another, and the dispatcher runs them
// concurrently, so Deliver must treat the Delivery as read-only.
package sink

import (
	"context"

	"github.com/poiesic/postflow/core"
)

// Delivery is one processed post handed to every sink.
type Delivery struct {
	Post       *core.Post
	Visibility core.Visibility
	Document   []byte // Raw payload annotated with provenance and image ids
}

// Sink is a downstream consumer of processed posts.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Init prepares the backing store. It is called once before the first delivery.
	Init(ctx context.Context) error

	// Deliver writes d. Errors are reported as *StoreError or *ConsistencyError.
	Deliver(ctx context.Context, d Delivery) error
}
