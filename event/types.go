package event

import "context"

// Priority determines handler execution order.
// Lower values execute first.
type Priority int

const (
	// PriorityCritical is for handlers that must observe events first.
	PriorityCritical Priority = 0

	// PriorityHigh is for interactive consumers such as a console view.
	PriorityHigh Priority = 100

	// PriorityNormal is the default priority.
	PriorityNormal Priority = 200

	// PriorityLow is for logging and export handlers that run last.
	PriorityLow Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityCritical:
		return "critical"
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// DeliveryMode specifies how events are delivered to handlers.
type DeliveryMode int

const (
	// DeliveryAsync queues the event for asynchronous delivery.
	// This is the default: publishers never block on subscribers.
	DeliveryAsync DeliveryMode = iota

	// DeliverySync executes the handler synchronously in the publisher's
	// goroutine. Only for subscribers that must observe the event before
	// the publisher continues.
	DeliverySync
)

// String returns a human-readable delivery mode name.
func (m DeliveryMode) String() string {
	switch m {
	case DeliverySync:
		return "sync"
	case DeliveryAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes an event.
	// The event parameter is type-erased; handlers should type-assert.
	Handle(ctx context.Context, event any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// FilterFunc is a predicate for filtering events.
// Return true to allow the event, false to filter it out.
type FilterFunc func(event any) bool

// Stats contains event bus statistics.
type Stats struct {
	// EventsPublished is the total number of events published.
	EventsPublished uint64

	// EventsDelivered is the total number of events delivered to handlers.
	EventsDelivered uint64

	// EventsDropped is the number of events dropped (queue full, etc.).
	EventsDropped uint64

	// HandlersExecuted is the total number of handler executions.
	HandlersExecuted uint64

	// HandlerErrors is the number of handlers that returned errors.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64

	// ActiveSubscribers is the current number of active subscriptions.
	ActiveSubscribers int

	// QueueDepth is the current async queue depth.
	QueueDepth int
}
