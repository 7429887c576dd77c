package backend

import "fmt"

var (
	// ErrInvalidConfig is returned when a backend configuration fails
	// per-kind validation.
	ErrInvalidConfig = fmt.Errorf("invalid backend config")

	// ErrUnknownKind is returned by the factory when no builder is registered
	// for a provider kind.
	ErrUnknownKind = fmt.Errorf("unknown provider kind")

	// ErrNoBackends is returned when zero backends could be resolved for a
	// session; at least one handle must succeed.
	ErrNoBackends = fmt.Errorf("no backends could be initialized")
)
