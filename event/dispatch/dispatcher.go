package dispatch

import (
	"context"
	"time"
)

// Handler is the interface for event handlers.
// This mirrors the event.Handler interface to avoid circular imports.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// Result represents the outcome of a handler execution.
type Result struct {
	// Success is true if the handler completed without error or panic.
	Success bool

	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the handler took to execute.
	Duration time.Duration

	// Skipped is true if the handler was not executed (e.g., context cancelled).
	Skipped bool
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// PanicHandler is called when a handler panics during execution.
// It receives the event being processed, the panic value, and the stack trace.
type PanicHandler func(event any, panicValue any, stack []byte)

// defaultPanicHandler is a no-op panic handler. Subscriber panics are
// isolated; the bus installs a logging handler on top of this.
func defaultPanicHandler(event any, panicValue any, stack []byte) {}
