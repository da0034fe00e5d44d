package ingestion

import "errors"

var (
	// ErrSourceRequired is returned when a source is not provided.
	ErrSourceRequired = errors.New("record source required")

	// ErrClassifierRequired is returned when a classifier is not provided.
	ErrClassifierRequired = errors.New("classifier required")

	// ErrRegistrarRequired is returned when a registrar is not provided.
	ErrRegistrarRequired = errors.New("registrar required")

	// ErrDispatcherReleased is returned when a released dispatcher is ticked.
	ErrDispatcherReleased = errors.New("dispatcher released")

	// ErrSinkPanic wraps a panic recovered from a sink delivery.
	ErrSinkPanic = errors.New("sink panicked")
)
