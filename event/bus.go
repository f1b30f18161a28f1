package event

import (
	"context"
	"sync/atomic"

	"github.com/dshills/devprobe/event/dispatch"
	"github.com/dshills/devprobe/event/topic"
)

// Bus is the central debug event bus interface.
type Bus interface {
	// Publishing
	Publish(ctx context.Context, event any) error
	PublishSync(ctx context.Context, event any) error
	PublishAsync(ctx context.Context, event any) error

	// Subscription
	Subscribe(topicPattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error

	// Lifecycle
	Start() error
	Stop(ctx context.Context) error

	// Status
	Stats() Stats
	IsRunning() bool
}

// bus is the default Bus implementation.
type bus struct {
	registry *Registry

	syncDispatcher  *dispatch.SyncDispatcher
	asyncDispatcher *dispatch.AsyncDispatcher

	running atomic.Bool

	config busConfig

	// Stats
	eventsPublished  atomic.Uint64
	eventsDelivered  atomic.Uint64
	eventsDropped    atomic.Uint64
	handlersExecuted atomic.Uint64
	handlerErrors    atomic.Uint64
	handlerPanics    atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &bus{
		registry: NewRegistry(),
		config:   config,
	}

	b.syncDispatcher = dispatch.NewSyncDispatcher(
		dispatch.WithPanicHandler(config.panicHandler),
	)
	b.asyncDispatcher = dispatch.NewAsyncDispatcher(
		dispatch.WithQueueSize(config.asyncQueueSize),
		dispatch.WithWorkerCount(config.asyncWorkerCount),
		dispatch.WithAsyncTimeout(config.defaultTimeout),
		dispatch.WithAsyncPanicHandler(config.panicHandler),
	)

	return b
}

// Start starts the event bus.
func (b *bus) Start() error {
	if b.running.Load() {
		return ErrBusAlreadyRunning
	}
	if err := b.asyncDispatcher.Start(); err != nil {
		return err
	}
	b.running.Store(true)
	return nil
}

// Stop stops the event bus gracefully.
// It waits for all pending async events to be processed or until the
// context is cancelled. After Stop returns no handler is invoked again.
func (b *bus) Stop(ctx context.Context) error {
	if !b.running.Swap(false) {
		return ErrBusNotRunning
	}
	return b.asyncDispatcher.Stop(ctx)
}

// IsRunning returns true if the bus is running.
func (b *bus) IsRunning() bool {
	return b.running.Load()
}

// Publish sends an event using the default delivery mode (async).
func (b *bus) Publish(ctx context.Context, event any) error {
	return b.PublishAsync(ctx, event)
}

// PublishSync delivers an event to sync subscribers in the caller's
// goroutine. The call blocks until all sync handlers complete.
func (b *bus) PublishSync(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}

	eventTopic := b.extractTopic(event)
	if eventTopic == "" {
		return ErrInvalidEvent
	}

	subs := b.registry.MatchActive(eventTopic)
	if len(subs) == 0 {
		return nil
	}

	b.eventsPublished.Add(1)

	for _, sub := range subs {
		if sub.Config().DeliveryMode != DeliverySync {
			continue
		}
		if !sub.ShouldDeliver(event) {
			continue
		}

		result := b.syncDispatcher.Dispatch(ctx, event, sub.Handler())
		b.handlersExecuted.Add(1)

		switch {
		case result.Panicked:
			b.handlerPanics.Add(1)
		case result.Error != nil:
			b.handlerErrors.Add(1)
		case result.Success:
			b.eventsDelivered.Add(1)
		}

		if sub.Config().Once && result.Success {
			sub.Cancel()
			b.registry.Remove(sub.ID())
		}
	}

	return nil
}

// PublishAsync queues an event for asynchronous delivery.
// Publishing never blocks on subscribers: when the queue is full the
// delivery is dropped and counted.
func (b *bus) PublishAsync(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}

	eventTopic := b.extractTopic(event)
	if eventTopic == "" {
		return ErrInvalidEvent
	}

	subs := b.registry.MatchActive(eventTopic)
	if len(subs) == 0 {
		return nil
	}

	b.eventsPublished.Add(1)

	for _, sub := range subs {
		if sub.Config().DeliveryMode != DeliveryAsync {
			continue
		}
		if !sub.ShouldDeliver(event) {
			continue
		}

		// Once-subscriptions are consumed at enqueue time; success of the
		// handler cannot be observed from here.
		if sub.Config().Once {
			if !sub.claim() {
				continue
			}
			b.registry.Remove(sub.ID())
		}

		if err := b.asyncDispatcher.Enqueue(ctx, event, sub.Handler()); err != nil {
			// Queue full - event dropped for this handler, keep trying others.
			b.eventsDropped.Add(1)
		}
	}

	return nil
}

// Subscribe creates a new subscription for the given topic pattern.
// This method is safe to call concurrently.
func (b *bus) Subscribe(topicPattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !topicPattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := newSubscription(GenerateID(), topicPattern, handler, opts...)
	b.registry.Add(sub)

	return sub, nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *bus) SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	return b.Subscribe(topicPattern, fn, opts...)
}

// Unsubscribe removes a subscription.
// This method is safe to call concurrently.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}

	sub.Cancel()
	if !b.registry.Remove(sub.ID()) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// Stats returns current bus statistics.
func (b *bus) Stats() Stats {
	asyncStats := b.asyncDispatcher.Stats()
	syncStats := b.syncDispatcher.Stats()

	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsDelivered:   b.eventsDelivered.Load() + asyncStats.Succeeded,
		EventsDropped:     b.eventsDropped.Load(),
		HandlersExecuted:  b.handlersExecuted.Load() + asyncStats.Processed,
		HandlerErrors:     b.handlerErrors.Load() + asyncStats.Failed,
		HandlerPanics:     b.handlerPanics.Load() + asyncStats.Panicked + syncStats.Panicked,
		ActiveSubscribers: b.registry.CountActive(),
		QueueDepth:        asyncStats.QueueDepth,
	}
}

// extractTopic extracts the topic from an event.
func (b *bus) extractTopic(event any) topic.Topic {
	if tp, ok := event.(TopicProvider); ok {
		return tp.EventTopic()
	}
	return ""
}
