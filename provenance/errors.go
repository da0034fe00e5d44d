package provenance

import (
	"errors"
	"fmt"

	"github.com/poiesic/postflow/storage"
)

var (
	// ErrRegistryRequired is returned when a registrar is created without a registry.
	ErrRegistryRequired = errors.New("registry required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// Kind classifies a registration failure.
type Kind int

const (
	KindOther Kind = iota
	KindDuplicate
	KindMissingParent
	KindCyclicLineage
	KindRuleNotFound
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindDuplicate:
		return "duplicate"
	case KindMissingParent:
		return "missing parent"
	case KindCyclicLineage:
		return "cyclic lineage"
	case KindRuleNotFound:
		return "rule not found"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// kindOf maps a registry error to its Kind.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, storage.ErrDuplicateDocument):
		return KindDuplicate
	case errors.Is(err, storage.ErrMissingParent):
		return KindMissingParent
	case errors.Is(err, storage.ErrCyclicLineage):
		return KindCyclicLineage
	case errors.Is(err, storage.ErrRuleNotFound):
		return KindRuleNotFound
	case errors.Is(err, storage.ErrTransport):
		return KindTransport
	default:
		return KindOther
	}
}

// RegistrationError reports that a URI could not be registered.
// It unwraps to the registry error, so errors.Is works against the
// storage sentinels.
type RegistrationError struct {
	URI  string
	Kind Kind
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %s: %v", e.URI, e.Kind, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

func newRegistrationError(uri string, err error) *RegistrationError {
	return &RegistrationError{URI: uri, Kind: kindOf(err), Err: err}
}
