package breakpoint

import "errors"

// Sentinel errors for the breakpoint registry.
var (
	// ErrNotFound is returned when a breakpoint ID is unknown.
	ErrNotFound = errors.New("breakpoint not found")

	// ErrEmptyLocation is returned when registering with an empty location tag.
	ErrEmptyLocation = errors.New("breakpoint location cannot be empty")
)
