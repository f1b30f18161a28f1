package debugger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshills/devprobe/config"
	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/events"
	"github.com/dshills/devprobe/monitor"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Memory.SampleInterval = 10 * time.Millisecond
	cfg.Performance.SampleInterval = 10 * time.Millisecond
	cfg.Memory.BufferCapacity = 8
	cfg.Performance.BufferCapacity = 8
	return cfg
}

func newTestManager(t *testing.T, cfg config.Config, opts ...Option) *Manager {
	t.Helper()
	m, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() {
		_ = m.Close(context.Background())
	})
	return m
}

func TestManager_New_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Console.HistoryLimit = 0

	if _, err := New(cfg); err == nil {
		t.Error("expected invalid configuration to be rejected")
	}
}

func TestManager_EnableDisable(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()

	if m.IsEnabled() {
		t.Error("expected new manager disabled")
	}

	if err := m.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !m.IsEnabled() {
		t.Error("expected enabled")
	}

	// Idempotent variants are no-ops; strict variants report.
	if err := m.Enable(ctx); err != nil {
		t.Errorf("expected idempotent enable, got %v", err)
	}
	if err := m.EnableStrict(ctx); err != ErrAlreadyEnabled {
		t.Errorf("expected ErrAlreadyEnabled, got %v", err)
	}

	if err := m.Disable(ctx); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if m.IsEnabled() {
		t.Error("expected disabled")
	}
	if err := m.Disable(ctx); err != nil {
		t.Errorf("expected idempotent disable, got %v", err)
	}
	if err := m.DisableStrict(ctx); err != ErrAlreadyDisabled {
		t.Errorf("expected ErrAlreadyDisabled, got %v", err)
	}
}

func TestManager_EventsFlowToSubscriber(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()

	var mu sync.Mutex
	topics := map[string]int{}
	_, err := m.Subscribe(func(_ context.Context, ev any) error {
		if tp, ok := ev.(event.TopicProvider); ok {
			mu.Lock()
			topics[tp.EventTopic().String()]++
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := m.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if _, err := m.Registry().Register("checkout", "total > 100"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !m.Checkpoint("checkout", map[string]any{"total": 150}) {
		t.Fatal("expected checkpoint hit")
	}
	m.Console().Execute("1 + 1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		ok := topics[events.TopicBreakpointHit.String()] >= 1 &&
			topics[events.TopicConsoleResult.String()] >= 1 &&
			topics[events.TopicMemorySample.String()] >= 1 &&
			topics[events.TopicPerformanceSample.String()] >= 1
		mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	t.Fatalf("expected events from every subsystem, got %v", topics)
}

func TestManager_SubscribeTopic(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	sub, err := m.SubscribeTopic("debug.breakpoint.*", func(_ context.Context, ev any) error {
		mu.Lock()
		got = append(got, ev.(event.Event[events.BreakpointHit]).Payload.Location)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := m.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := m.Registry().Register("login", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	m.Checkpoint("login", nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "login" {
		t.Errorf("expected one login hit, got %v", got)
	}

	if err := m.Unsubscribe(sub); err != nil {
		t.Errorf("unsubscribe: %v", err)
	}
}

func TestManager_Unsubscribe_Idempotent(t *testing.T) {
	m := newTestManager(t, testConfig())

	sub, err := m.Subscribe(func(_ context.Context, _ any) error { return nil })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := m.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := m.Unsubscribe(sub); err != nil {
		t.Errorf("expected second unsubscribe to be a no-op, got %v", err)
	}
}

func TestManager_Checkpoint_DisabledEngine(t *testing.T) {
	m := newTestManager(t, testConfig())

	if _, err := m.Registry().Register("checkout", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if m.Checkpoint("checkout", nil) {
		t.Error("expected no hit while disabled")
	}
}

func TestManager_NetworkCaptureDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Network.CaptureEnabled = false
	m := newTestManager(t, cfg)

	if m.NetworkMonitor() != nil {
		t.Error("expected nil network monitor when capture disabled")
	}
	if m.NetworkEvents() != nil {
		t.Error("expected nil network events when capture disabled")
	}

	ctx := context.Background()
	if err := m.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := m.Disable(ctx); err != nil {
		t.Fatalf("disable: %v", err)
	}
}

func TestManager_Accessors(t *testing.T) {
	m := newTestManager(t, testConfig(),
		WithMemoryStatsFunc(func() (uint64, uint64, error) { return 1024, 10, nil }))
	ctx := context.Background()

	if err := m.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if _, err := m.Registry().Register("checkout", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(m.Breakpoints()) != 1 {
		t.Errorf("expected 1 breakpoint, got %d", len(m.Breakpoints()))
	}

	m.Console().Execute("2 + 2")
	if len(m.ConsoleHistory()) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(m.ConsoleHistory()))
	}

	m.RecordFrame(16 * time.Millisecond)
	if nm := m.NetworkMonitor(); nm != nil {
		id := nm.OnRequestObserved(monitor.RequestInfo{Method: "GET", URL: "https://example.com"})
		nm.OnResponseObserved(id, monitor.ResponseInfo{Status: 200})
	}
	if len(m.NetworkEvents()) != 1 {
		t.Errorf("expected 1 network event, got %d", len(m.NetworkEvents()))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(m.MemorySamples(0)) >= 1 && len(m.PerformanceSamples(0)) >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(m.MemorySamples(0)) == 0 {
		t.Error("expected memory samples")
	}
	if len(m.PerformanceSamples(0)) == 0 {
		t.Error("expected performance samples")
	}

	if m.Inspector() == nil {
		t.Error("expected inspector")
	}
	if m.Stats().EventsPublished == 0 {
		t.Error("expected published events in stats")
	}
}

func TestManager_Disable_StopsEmission(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()

	var count int
	var mu sync.Mutex
	_, err := m.Subscribe(func(_ context.Context, _ any) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := m.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := count
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := m.Disable(ctx); err != nil {
		t.Fatalf("disable: %v", err)
	}

	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != after {
		t.Error("expected no deliveries after Disable returned")
	}
}
