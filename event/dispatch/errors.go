package dispatch

import "errors"

// Sentinel errors for dispatcher lifecycle and delivery.
var (
	// ErrAlreadyRunning is returned by Start on a dispatcher whose
	// worker pool is already up.
	ErrAlreadyRunning = errors.New("dispatch: already running")

	// ErrNotRunning is returned when a delivery is attempted against
	// a stopped dispatcher.
	ErrNotRunning = errors.New("dispatch: not running")

	// ErrQueueFull is returned by Enqueue when the delivery queue is
	// at capacity; the event is dropped, never queued blocking.
	ErrQueueFull = errors.New("dispatch: queue full")
)
