package monitor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/events"
	"github.com/dshills/devprobe/internal/bounded"
	"github.com/dshills/devprobe/internal/logging"
)

// MemoryStatsFunc supplies memory statistics for one sample.
// The default reads the Go runtime's heap numbers; hosts can inject
// their own source.
type MemoryStatsFunc func() (usedBytes, heapObjects uint64, err error)

// runtimeMemoryStats reads the Go runtime heap statistics.
func runtimeMemoryStats() (uint64, uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, ms.HeapObjects, nil
}

// MemoryMonitor samples memory statistics on a fixed interval into a
// ring buffer and raises a MemoryPressure alert when a sample exceeds
// the configured threshold.
type MemoryMonitor struct {
	interval  time.Duration
	threshold uint64 // bytes; 0 disables the alert

	ring    *bounded.Queue[events.MemorySampleTaken]
	statsFn MemoryStatsFunc
	bus     Publisher
	log     *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// MemoryOption configures a MemoryMonitor.
type MemoryOption func(*MemoryMonitor)

// WithMemoryLogger sets the monitor logger.
func WithMemoryLogger(log *logging.Logger) MemoryOption {
	return func(m *MemoryMonitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMemoryStats injects the statistics source.
func WithMemoryStats(fn MemoryStatsFunc) MemoryOption {
	return func(m *MemoryMonitor) {
		if fn != nil {
			m.statsFn = fn
		}
	}
}

// WithMemoryThreshold sets the used-bytes level that raises a
// MemoryPressure alert.
func WithMemoryThreshold(bytes uint64) MemoryOption {
	return func(m *MemoryMonitor) {
		m.threshold = bytes
	}
}

// NewMemoryMonitor creates a memory monitor.
func NewMemoryMonitor(bus Publisher, interval time.Duration, capacity int, opts ...MemoryOption) *MemoryMonitor {
	m := &MemoryMonitor{
		interval: interval,
		ring:     bounded.New[events.MemorySampleTaken](capacity),
		statsFn:  runtimeMemoryStats,
		bus:      bus,
		log:      logging.Null,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins periodic sampling.
func (m *MemoryMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

// Stop cancels sampling and waits for the in-flight tick to finish.
// After Stop returns, no further samples or events are emitted.
func (m *MemoryMonitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// run is the sampling loop.
func (m *MemoryMonitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// sample takes one sample. Failures are reported as alerts and the
// tick is skipped; the next tick proceeds independently.
func (m *MemoryMonitor) sample(ctx context.Context) {
	s, err := m.SampleNow()
	if err != nil {
		m.log.Warn("memory sample failed: %v", err)
		alert := events.AlertRaised{
			Kind:      events.AlertSamplingFailure,
			Source:    "memory",
			Message:   "memory sample failed: " + err.Error(),
			Timestamp: time.Now(),
		}
		_ = m.bus.Publish(ctx, event.NewEvent(events.TopicAlertRaised, alert, "memory"))
		return
	}

	m.ring.Append(s)
	_ = m.bus.Publish(ctx, event.NewEvent(events.TopicMemorySample, s, "memory"))

	if m.threshold > 0 && s.UsedBytes > m.threshold {
		alert := events.AlertRaised{
			Kind:      events.AlertMemoryPressure,
			Source:    "memory",
			Message:   "heap usage over threshold",
			Timestamp: s.Timestamp,
		}
		_ = m.bus.Publish(ctx, event.NewEvent(events.TopicAlertRaised, alert, "memory"))
	}
}

// SampleNow reads the statistics source immediately without touching
// the ring buffer. Used by the console :memdump built-in.
func (m *MemoryMonitor) SampleNow() (events.MemorySampleTaken, error) {
	used, objects, err := m.statsFn()
	if err != nil {
		return events.MemorySampleTaken{}, fmt.Errorf("%w: %v", ErrStatsUnavailable, err)
	}
	return events.MemorySampleTaken{
		Timestamp:   time.Now(),
		UsedBytes:   used,
		HeapObjects: objects,
	}, nil
}

// Latest returns up to n of the most recent samples, oldest first.
// n <= 0 returns everything retained.
func (m *MemoryMonitor) Latest(n int) []events.MemorySampleTaken {
	return m.ring.Latest(n)
}
