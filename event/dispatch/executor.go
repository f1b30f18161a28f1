package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor handles the actual execution of event handlers with
// panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the panic handler for the executor.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.panicHandler = h
		}
	}
}

// Execute runs a handler with the given event and returns the result.
// It recovers from panics and captures timing information.
func (e *Executor) Execute(ctx context.Context, event any, handler Handler) (result Result) {
	select {
	case <-ctx.Done():
		return Result{Error: ctx.Err(), Skipped: true}
	default:
	}

	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			// The panic handler itself must never crash the process.
			func() {
				defer func() { _ = recover() }()
				e.panicHandler(event, r, stack)
			}()
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

// ExecuteWithTimeout runs a handler with a timeout.
// The handler must respect context cancellation for this to be effective.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, event any, handler Handler, timeout time.Duration) Result {
	if timeout <= 0 {
		return e.Execute(ctx, event, handler)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, event, handler)
}
