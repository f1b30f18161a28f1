package event

import "errors"

// Sentinel errors for the event bus.
var (
	// ErrBusNotRunning is returned when operations are attempted on a stopped bus.
	ErrBusNotRunning = errors.New("event bus is not running")

	// ErrBusAlreadyRunning is returned when Start is called on a running bus.
	ErrBusAlreadyRunning = errors.New("event bus is already running")

	// ErrInvalidEvent is returned when an event is malformed or carries no topic.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidTopic is returned when a topic is empty or malformed.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidSubscription is returned when a subscription is invalid.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrSubscriptionNotFound is returned when trying to unsubscribe a non-existent subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")
)
