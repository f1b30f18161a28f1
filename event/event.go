package event

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/dshills/devprobe/event/topic"
)

// Event represents a debug event in the system.
// Events are immutable once created; the bus never retains them after
// delivery.
type Event[T any] struct {
	// Type is the hierarchical event type (e.g., "debug.breakpoint.hit").
	Type topic.Topic

	// Payload contains the event-specific data.
	Payload T

	// Metadata contains standard event information.
	Metadata Metadata
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies the subsystem that published the event.
	Source string
}

// NewEvent creates a new event with the given type and payload.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        GenerateID(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic implements the TopicProvider interface.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// TopicProvider is implemented by events that know their own topic.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// GenerateID returns a random 16-character hex identifier.
func GenerateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback: timestamp-derived, still unique enough for event IDs.
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000000")))[:16]
	}
	return hex.EncodeToString(b)
}
