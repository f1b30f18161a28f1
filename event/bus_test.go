package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshills/devprobe/event/topic"
)

func startedBus(t *testing.T) Bus {
	t.Helper()
	b := NewBus()
	if err := b.Start(); err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(func() {
		_ = b.Stop(context.Background())
	})
	return b
}

func TestBus_Lifecycle(t *testing.T) {
	b := NewBus()

	if b.IsRunning() {
		t.Error("expected new bus to be stopped")
	}
	if err := b.Publish(context.Background(), NewEvent(topic.Topic("debug.test"), 1, "test")); err != ErrBusNotRunning {
		t.Errorf("expected ErrBusNotRunning, got %v", err)
	}

	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := b.Start(); err != ErrBusAlreadyRunning {
		t.Errorf("expected ErrBusAlreadyRunning, got %v", err)
	}

	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := b.Stop(context.Background()); err != ErrBusNotRunning {
		t.Errorf("expected ErrBusNotRunning on double stop, got %v", err)
	}
}

func TestBus_PublishSync(t *testing.T) {
	b := startedBus(t)

	var received []any
	_, err := b.SubscribeFunc("debug.breakpoint.*", func(_ context.Context, ev any) error {
		received = append(received, ev)
		return nil
	}, WithDeliveryMode(DeliverySync))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := NewEvent(topic.Topic("debug.breakpoint.hit"), "payload", "test")
	if err := b.PublishSync(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}
	got, ok := received[0].(Event[string])
	if !ok {
		t.Fatalf("expected Event[string], got %T", received[0])
	}
	if got.Payload != "payload" {
		t.Errorf("expected payload, got %q", got.Payload)
	}
}

func TestBus_PublishAsync(t *testing.T) {
	b := startedBus(t)

	var mu sync.Mutex
	var count int
	done := make(chan struct{})
	_, err := b.SubscribeFunc("debug.**", func(_ context.Context, _ any) error {
		mu.Lock()
		count++
		mu.Unlock()
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), NewEvent(topic.Topic("debug.memory.sample"), 42, "test")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestBus_WildcardRouting(t *testing.T) {
	b := startedBus(t)

	var mu sync.Mutex
	hits := map[string]int{}
	subscribe := func(pattern topic.Topic) {
		t.Helper()
		_, err := b.SubscribeFunc(pattern, func(_ context.Context, _ any) error {
			mu.Lock()
			hits[pattern.String()]++
			mu.Unlock()
			return nil
		}, WithDeliveryMode(DeliverySync))
		if err != nil {
			t.Fatalf("subscribe %q: %v", pattern, err)
		}
	}

	subscribe("debug.breakpoint.hit")
	subscribe("debug.breakpoint.*")
	subscribe("debug.**")
	subscribe("debug.memory.*")

	ev := NewEvent(topic.Topic("debug.breakpoint.hit"), struct{}{}, "test")
	if err := b.PublishSync(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, pattern := range []string{"debug.breakpoint.hit", "debug.breakpoint.*", "debug.**"} {
		if hits[pattern] != 1 {
			t.Errorf("expected pattern %q hit once, got %d", pattern, hits[pattern])
		}
	}
	if hits["debug.memory.*"] != 0 {
		t.Errorf("expected debug.memory.* unmatched, got %d", hits["debug.memory.*"])
	}
}

func TestBus_Subscribe_Validation(t *testing.T) {
	b := startedBus(t)

	if _, err := b.Subscribe("debug.test", nil); err != ErrNilHandler {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
	if _, err := b.SubscribeFunc("", func(_ context.Context, _ any) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("expected ErrInvalidTopic, got %v", err)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := startedBus(t)

	var count int
	sub, err := b.SubscribeFunc("debug.test", func(_ context.Context, _ any) error {
		count++
		return nil
	}, WithDeliveryMode(DeliverySync))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := b.Unsubscribe(sub); err != ErrSubscriptionNotFound {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}
	if err := b.Unsubscribe(nil); err != ErrInvalidSubscription {
		t.Errorf("expected ErrInvalidSubscription, got %v", err)
	}

	ev := NewEvent(topic.Topic("debug.test"), struct{}{}, "test")
	if err := b.PublishSync(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no delivery after unsubscribe, got %d", count)
	}
}

func TestBus_Once(t *testing.T) {
	b := startedBus(t)

	var count int
	_, err := b.SubscribeFunc("debug.test", func(_ context.Context, _ any) error {
		count++
		return nil
	}, WithDeliveryMode(DeliverySync), WithOnce())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := NewEvent(topic.Topic("debug.test"), struct{}{}, "test")
	for i := 0; i < 3; i++ {
		if err := b.PublishSync(context.Background(), ev); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one delivery for Once subscription, got %d", count)
	}
}

func TestBus_OnceAsync(t *testing.T) {
	b := startedBus(t)

	delivered := make(chan struct{}, 3)
	sub, err := b.SubscribeFunc("debug.test", func(_ context.Context, _ any) error {
		delivered <- struct{}{}
		return nil
	}, WithOnce())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := NewEvent(topic.Topic("debug.test"), struct{}{}, "test")
	for i := 0; i < 3; i++ {
		if err := b.PublishAsync(context.Background(), ev); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected one async delivery for Once subscription")
	}
	select {
	case <-delivered:
		t.Error("expected no second delivery for Once subscription")
	case <-time.After(100 * time.Millisecond):
	}
	if sub.IsActive() {
		t.Error("expected Once subscription to be cancelled after delivery")
	}
}

func TestBus_Filter(t *testing.T) {
	b := startedBus(t)

	var received []int
	_, err := b.SubscribeFunc("debug.test", func(_ context.Context, ev any) error {
		received = append(received, ev.(Event[int]).Payload)
		return nil
	}, WithDeliveryMode(DeliverySync), WithFilter(func(ev any) bool {
		return ev.(Event[int]).Payload%2 == 0
	}))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 1; i <= 4; i++ {
		ev := NewEvent(topic.Topic("debug.test"), i, "test")
		if err := b.PublishSync(context.Background(), ev); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	if len(received) != 2 || received[0] != 2 || received[1] != 4 {
		t.Errorf("expected [2 4], got %v", received)
	}
}

func TestBus_PriorityOrder(t *testing.T) {
	b := startedBus(t)

	var order []string
	subscribe := func(name string, p Priority) {
		t.Helper()
		_, err := b.SubscribeFunc("debug.test", func(_ context.Context, _ any) error {
			order = append(order, name)
			return nil
		}, WithDeliveryMode(DeliverySync), WithPriority(p))
		if err != nil {
			t.Fatalf("subscribe %s: %v", name, err)
		}
	}

	subscribe("low", PriorityLow)
	subscribe("critical", PriorityCritical)
	subscribe("normal", PriorityNormal)

	ev := NewEvent(topic.Topic("debug.test"), struct{}{}, "test")
	if err := b.PublishSync(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	want := []string{"critical", "normal", "low"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestBus_PanicIsolation(t *testing.T) {
	b := startedBus(t)

	var survived bool
	_, err := b.SubscribeFunc("debug.test", func(_ context.Context, _ any) error {
		panic("bad handler")
	}, WithDeliveryMode(DeliverySync), WithPriority(PriorityCritical))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_, err = b.SubscribeFunc("debug.test", func(_ context.Context, _ any) error {
		survived = true
		return nil
	}, WithDeliveryMode(DeliverySync))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := NewEvent(topic.Topic("debug.test"), struct{}{}, "test")
	if err := b.PublishSync(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if !survived {
		t.Error("expected delivery to continue past a panicking handler")
	}
	if b.Stats().HandlerPanics != 1 {
		t.Errorf("expected 1 recorded panic, got %d", b.Stats().HandlerPanics)
	}
}

func TestBus_Stats(t *testing.T) {
	b := startedBus(t)

	_, err := b.SubscribeFunc("debug.**", func(_ context.Context, _ any) error {
		return nil
	}, WithDeliveryMode(DeliverySync))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := NewEvent(topic.Topic("debug.test"), struct{}{}, "test")
	if err := b.PublishSync(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	stats := b.Stats()
	if stats.EventsPublished != 1 {
		t.Errorf("expected 1 published, got %d", stats.EventsPublished)
	}
	if stats.EventsDelivered != 1 {
		t.Errorf("expected 1 delivered, got %d", stats.EventsDelivered)
	}
	if stats.ActiveSubscribers != 1 {
		t.Errorf("expected 1 active subscriber, got %d", stats.ActiveSubscribers)
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	bID := GenerateID()

	if len(a) != 16 {
		t.Errorf("expected 16-char ID, got %d chars", len(a))
	}
	if a == bID {
		t.Error("expected distinct IDs")
	}
}
