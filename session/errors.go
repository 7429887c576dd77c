package session

import "fmt"

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = fmt.Errorf("session not found")

	// ErrNotActive is returned when a new turn (or an invalid lifecycle
	// transition) is attempted on a session whose status is not active.
	ErrNotActive = fmt.Errorf("session not active")

	// ErrCostCeilingExceeded is returned when a session's accumulated cost
	// has reached its ceiling; it is checked before any backend call.
	ErrCostCeilingExceeded = fmt.Errorf("session cost ceiling exceeded")

	// ErrUnknownExportFormat is returned by Export for formats other than
	// json and markdown.
	ErrUnknownExportFormat = fmt.Errorf("unknown export format")
)
