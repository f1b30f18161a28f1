package console

import "errors"

// Sentinel errors for the console engine.
var (
	// ErrNoContext is returned when a context-dependent expression is
	// evaluated before any runtime context has been bound.
	ErrNoContext = errors.New("no runtime context bound")

	// ErrUnknownVariable is returned when a variable-read path resolves
	// to nothing in the bound context.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrUnknownCommand is returned for an unrecognized built-in.
	ErrUnknownCommand = errors.New("unknown command")
)
