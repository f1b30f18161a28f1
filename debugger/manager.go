// Package debugger assembles the debugging engine: the event bus,
// breakpoint registry, console, inspector, and monitors, wired
// together behind a single Manager with an enable/disable lifecycle.
package debugger

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/devprobe/breakpoint"
	"github.com/dshills/devprobe/config"
	"github.com/dshills/devprobe/console"
	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/event/topic"
	"github.com/dshills/devprobe/events"
	"github.com/dshills/devprobe/inspect"
	"github.com/dshills/devprobe/internal/logging"
	"github.com/dshills/devprobe/monitor"
)

// Manager owns every engine component and their shared lifecycle.
// All methods are safe for concurrent use.
type Manager struct {
	cfg config.Config
	log *logging.Logger

	bus         event.Bus
	registry    *breakpoint.Registry
	console     *console.Engine
	inspector   *inspect.Inspector
	memory      *monitor.MemoryMonitor
	network     *monitor.NetworkMonitor
	performance *monitor.PerformanceMonitor

	mu      sync.Mutex
	enabled bool
}

// Option configures a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	log     *logging.Logger
	statsFn monitor.MemoryStatsFunc
	nowFn   func() time.Time
}

// WithLogger sets the engine logger. Components receive derived
// loggers tagged with their component name.
func WithLogger(log *logging.Logger) Option {
	return func(c *managerConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMemoryStatsFunc overrides the memory stats source. Used by
// tests to sample deterministic values.
func WithMemoryStatsFunc(fn monitor.MemoryStatsFunc) Option {
	return func(c *managerConfig) {
		c.statsFn = fn
	}
}

// WithClock overrides the network monitor clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *managerConfig) {
		c.nowFn = now
	}
}

// New builds a Manager from the configuration. The engine starts
// disabled; call Enable to begin monitoring.
func New(cfg config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mc := managerConfig{
		log: logging.New(logging.Config{
			Level:  logging.ParseLevel(cfg.Logging.Level),
			Prefix: "devprobe",
		}),
	}
	for _, opt := range opts {
		opt(&mc)
	}

	m := &Manager{
		cfg: cfg,
		log: mc.log,
		bus: event.NewBus(),
	}

	m.registry = breakpoint.NewRegistry(m.bus,
		breakpoint.WithLogger(mc.log.WithComponent("breakpoint")),
		breakpoint.WithEvalTimeout(cfg.Breakpoints.EvalTimeout),
	)

	memOpts := []monitor.MemoryOption{
		monitor.WithMemoryLogger(mc.log.WithComponent("memory")),
		monitor.WithMemoryThreshold(cfg.Memory.UsedBytesThreshold),
	}
	if mc.statsFn != nil {
		memOpts = append(memOpts, monitor.WithMemoryStats(mc.statsFn))
	}
	m.memory = monitor.NewMemoryMonitor(m.bus,
		cfg.Memory.SampleInterval, cfg.Memory.BufferCapacity, memOpts...)

	perfOpts := []monitor.PerformanceOption{
		monitor.WithPerformanceLogger(mc.log.WithComponent("performance")),
		monitor.WithRollingWindow(cfg.Performance.RollingWindow),
		monitor.WithDegradedFrameTime(cfg.Performance.DegradedFrameTime),
		monitor.WithCPUThreshold(cfg.Performance.CPUThreshold),
	}
	m.performance = monitor.NewPerformanceMonitor(m.bus,
		cfg.Performance.SampleInterval, cfg.Performance.BufferCapacity, perfOpts...)

	if cfg.Network.CaptureEnabled {
		netOpts := []monitor.NetworkOption{
			monitor.WithNetworkLogger(mc.log.WithComponent("network")),
			monitor.WithStalenessWindow(cfg.Network.StalenessWindow),
		}
		if mc.nowFn != nil {
			netOpts = append(netOpts, monitor.WithNetworkClock(mc.nowFn))
		}
		m.network = monitor.NewNetworkMonitor(m.bus, cfg.Network.EventCapacity, netOpts...)
	}

	m.console = console.NewEngine(m.bus, cfg.Console.HistoryLimit,
		console.WithLogger(mc.log.WithComponent("console")),
		console.WithExecTimeout(cfg.Console.ExecTimeout),
		console.WithBreakpointLister(m.registry),
		console.WithMemorySampler(m.memory),
	)

	m.inspector = inspect.NewInspector()

	return m, nil
}

// Enable starts the event bus and monitors. Enabling an already
// enabled engine is a no-op.
func (m *Manager) Enable(ctx context.Context) error {
	err := m.enable(ctx)
	if err == ErrAlreadyEnabled {
		return nil
	}
	return err
}

// EnableStrict is Enable that reports ErrAlreadyEnabled.
func (m *Manager) EnableStrict(ctx context.Context) error {
	return m.enable(ctx)
}

func (m *Manager) enable(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled {
		return ErrAlreadyEnabled
	}

	if err := m.bus.Start(); err != nil {
		return err
	}
	if err := m.memory.Start(ctx); err != nil {
		m.teardown(ctx)
		return err
	}
	if err := m.performance.Start(ctx); err != nil {
		m.teardown(ctx)
		return err
	}
	if m.network != nil {
		if err := m.network.Start(ctx); err != nil {
			m.teardown(ctx)
			return err
		}
	}

	m.enabled = true
	m.log.Info("debugger enabled")
	return nil
}

// Disable stops the monitors and then the bus. Once it returns, no
// subscriber is invoked again. Disabling an already disabled engine
// is a no-op.
func (m *Manager) Disable(ctx context.Context) error {
	err := m.disable(ctx)
	if err == ErrAlreadyDisabled {
		return nil
	}
	return err
}

// DisableStrict is Disable that reports ErrAlreadyDisabled.
func (m *Manager) DisableStrict(ctx context.Context) error {
	return m.disable(ctx)
}

func (m *Manager) disable(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return ErrAlreadyDisabled
	}
	m.enabled = false

	m.teardown(ctx)
	m.log.Info("debugger disabled")
	return nil
}

// teardown stops whatever is running. Monitors stop before the bus so
// every already-published event drains to subscribers.
func (m *Manager) teardown(ctx context.Context) {
	if err := m.memory.Stop(); err != nil && err != monitor.ErrNotRunning {
		m.log.Warn("memory monitor stop: %v", err)
	}
	if err := m.performance.Stop(); err != nil && err != monitor.ErrNotRunning {
		m.log.Warn("performance monitor stop: %v", err)
	}
	if m.network != nil {
		if err := m.network.Stop(); err != nil && err != monitor.ErrNotRunning {
			m.log.Warn("network monitor stop: %v", err)
		}
	}
	if err := m.bus.Stop(ctx); err != nil && err != event.ErrBusNotRunning {
		m.log.Warn("bus stop: %v", err)
	}
}

// IsEnabled reports whether the engine is running.
func (m *Manager) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Close disables the engine and releases the interpreter states held
// by the registry and console.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Disable(ctx)
	m.registry.Close()
	m.console.Close()
	return err
}

// Subscribe registers a handler for every debug event.
func (m *Manager) Subscribe(fn event.HandlerFunc, opts ...event.SubscriptionOption) (event.Subscription, error) {
	return m.bus.SubscribeFunc(events.TopicAll, fn, opts...)
}

// SubscribeTopic registers a handler for a topic pattern, e.g.
// "debug.breakpoint.*" or "debug.**".
func (m *Manager) SubscribeTopic(pattern topic.Topic, fn event.HandlerFunc, opts ...event.SubscriptionOption) (event.Subscription, error) {
	return m.bus.SubscribeFunc(pattern, fn, opts...)
}

// Unsubscribe cancels a subscription. Unsubscribing a handle that is
// unknown or already removed is a no-op.
func (m *Manager) Unsubscribe(sub event.Subscription) error {
	err := m.bus.Unsubscribe(sub)
	if err == event.ErrSubscriptionNotFound {
		return nil
	}
	return err
}

// Checkpoint evaluates the enabled breakpoints registered for a
// location against the host context. Returns true when the engine is
// enabled and a breakpoint condition held.
func (m *Manager) Checkpoint(location string, hostCtx map[string]any) bool {
	if !m.IsEnabled() {
		return false
	}
	return m.registry.Checkpoint(location, hostCtx)
}

// RecordFrame forwards a frame duration to the performance monitor.
func (m *Manager) RecordFrame(d time.Duration) {
	m.performance.RecordFrame(d)
}

// Registry returns the breakpoint registry.
func (m *Manager) Registry() *breakpoint.Registry { return m.registry }

// Console returns the interactive console engine.
func (m *Manager) Console() *console.Engine { return m.console }

// Inspector returns the variable inspector.
func (m *Manager) Inspector() *inspect.Inspector { return m.inspector }

// MemoryMonitor returns the memory monitor.
func (m *Manager) MemoryMonitor() *monitor.MemoryMonitor { return m.memory }

// PerformanceMonitor returns the performance monitor.
func (m *Manager) PerformanceMonitor() *monitor.PerformanceMonitor { return m.performance }

// NetworkMonitor returns the network monitor, or nil when capture is
// disabled by configuration.
func (m *Manager) NetworkMonitor() *monitor.NetworkMonitor { return m.network }

// Breakpoints lists the registered breakpoints in ID order.
func (m *Manager) Breakpoints() []breakpoint.Breakpoint {
	return m.registry.All()
}

// ConsoleHistory returns the console history, oldest first.
func (m *Manager) ConsoleHistory() []console.Entry {
	return m.console.History()
}

// MemorySamples returns up to n recent memory samples, oldest first.
func (m *Manager) MemorySamples(n int) []events.MemorySampleTaken {
	return m.memory.Latest(n)
}

// PerformanceSamples returns up to n recent performance samples,
// oldest first.
func (m *Manager) PerformanceSamples(n int) []events.PerformanceSampleTaken {
	return m.performance.Latest(n)
}

// NetworkEvents returns the tracked network events, oldest first.
// Returns nil when capture is disabled.
func (m *Manager) NetworkEvents() []monitor.NetworkEvent {
	if m.network == nil {
		return nil
	}
	return m.network.Events()
}

// Stats returns event bus statistics.
func (m *Manager) Stats() event.Stats {
	return m.bus.Stats()
}
