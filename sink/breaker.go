package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a Sink in a circuit breaker. After maxFailures consecutive
// failed deliveries the circuit opens and deliveries fail fast with
// ErrCircuitOpen until timeout elapses.
type Breaker struct {
	next Sink
	cb   *gobreaker.CircuitBreaker
}

var _ Sink = (*Breaker)(nil)

// NewBreaker wraps next. maxFailures of 0 is treated as 1.
func NewBreaker(next Sink, maxFailures uint32, timeout time.Duration, logger *slog.Logger) *Breaker {
	if maxFailures == 0 {
		maxFailures = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "breaker", "sink", next.Name())

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Name() string { return b.next.Name() }

func (b *Breaker) Init(ctx context.Context) error { return b.next.Init(ctx) }

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Deliver(ctx context.Context, d Delivery) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Deliver(ctx, d)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &StoreError{Sink: b.Name(), Op: "deliver", Err: fmt.Errorf("%w: %w", ErrCircuitOpen, err)}
	}
	return err
}
