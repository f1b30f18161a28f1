package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/events"
	"github.com/dshills/devprobe/internal/bounded"
	"github.com/dshills/devprobe/internal/logging"
)

// PerformanceMonitor samples frame timing and CPU usage on a fixed
// interval. Frame durations are reported by the host through
// RecordFrame; CPU usage is derived from process CPU time deltas.
type PerformanceMonitor struct {
	interval      time.Duration
	window        int           // rolling average window, in samples
	degradedFrame time.Duration // 0 disables the frame alert
	cpuThreshold  float64       // percent; 0 disables the CPU alert

	ring    *bounded.Queue[events.PerformanceSampleTaken]
	frameNs atomic.Int64 // most recent host-reported frame duration

	// CPU delta state, touched only by the sampling goroutine.
	lastCPU  time.Duration
	lastWall time.Time

	bus Publisher
	log *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// PerformanceOption configures a PerformanceMonitor.
type PerformanceOption func(*PerformanceMonitor)

// WithPerformanceLogger sets the monitor logger.
func WithPerformanceLogger(log *logging.Logger) PerformanceOption {
	return func(m *PerformanceMonitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRollingWindow sets the rolling average window in samples.
func WithRollingWindow(n int) PerformanceOption {
	return func(m *PerformanceMonitor) {
		if n > 0 {
			m.window = n
		}
	}
}

// WithDegradedFrameTime sets the frame duration that raises a
// PerformanceDegradation alert.
func WithDegradedFrameTime(d time.Duration) PerformanceOption {
	return func(m *PerformanceMonitor) {
		m.degradedFrame = d
	}
}

// WithCPUThreshold sets the CPU percentage that raises a
// PerformanceDegradation alert.
func WithCPUThreshold(percent float64) PerformanceOption {
	return func(m *PerformanceMonitor) {
		m.cpuThreshold = percent
	}
}

// NewPerformanceMonitor creates a performance monitor.
func NewPerformanceMonitor(bus Publisher, interval time.Duration, capacity int, opts ...PerformanceOption) *PerformanceMonitor {
	m := &PerformanceMonitor{
		interval: interval,
		window:   10,
		ring:     bounded.New[events.PerformanceSampleTaken](capacity),
		bus:      bus,
		log:      logging.Null,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordFrame reports one frame duration from the host. Safe to call
// from any goroutine at any rate.
func (m *PerformanceMonitor) RecordFrame(d time.Duration) {
	m.frameNs.Store(d.Nanoseconds())
}

// Start begins periodic sampling.
func (m *PerformanceMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	cpu, err := processCPUTime()
	if err != nil {
		cpu = 0
	}
	m.lastCPU = cpu
	m.lastWall = time.Now()

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

// Stop cancels sampling and waits for the in-flight tick to finish.
func (m *PerformanceMonitor) Stop() error {
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
func (m *PerformanceMonitor) run(ctx context.Context) {
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

// sample takes one sample and publishes it.
func (m *PerformanceMonitor) sample(ctx context.Context) {
	now := time.Now()
	frame := time.Duration(m.frameNs.Load())

	cpuPercent := 0.0
	cpu, err := processCPUTime()
	if err != nil {
		m.log.Warn("cpu time unavailable: %v", err)
		alert := events.AlertRaised{
			Kind:      events.AlertSamplingFailure,
			Source:    "performance",
			Message:   "cpu time unavailable: " + err.Error(),
			Timestamp: now,
		}
		_ = m.bus.Publish(ctx, event.NewEvent(events.TopicAlertRaised, alert, "performance"))
	} else {
		wall := now.Sub(m.lastWall)
		if wall > 0 {
			cpuPercent = float64(cpu-m.lastCPU) / float64(wall) * 100
			if cpuPercent < 0 {
				cpuPercent = 0
			}
		}
		m.lastCPU = cpu
		m.lastWall = now
	}

	s := events.PerformanceSampleTaken{
		Timestamp:    now,
		FrameTime:    frame,
		AvgFrameTime: m.rollingAverage(frame),
		CPUPercent:   cpuPercent,
	}

	m.ring.Append(s)
	_ = m.bus.Publish(ctx, event.NewEvent(events.TopicPerformanceSample, s, "performance"))

	degraded := (m.degradedFrame > 0 && frame > m.degradedFrame) ||
		(m.cpuThreshold > 0 && cpuPercent > m.cpuThreshold)
	if degraded {
		alert := events.AlertRaised{
			Kind:      events.AlertPerformanceDegradation,
			Source:    "performance",
			Message:   "frame time or cpu usage over threshold",
			Timestamp: now,
		}
		_ = m.bus.Publish(ctx, event.NewEvent(events.TopicAlertRaised, alert, "performance"))
	}
}

// rollingAverage averages the incoming frame time with the retained
// window of previous samples.
func (m *PerformanceMonitor) rollingAverage(frame time.Duration) time.Duration {
	if m.window <= 1 {
		return frame
	}
	prev := m.ring.Latest(m.window - 1)
	total := frame
	for _, s := range prev {
		total += s.FrameTime
	}
	return total / time.Duration(len(prev)+1)
}

// Latest returns up to n of the most recent samples, oldest first.
// n <= 0 returns everything retained.
func (m *PerformanceMonitor) Latest(n int) []events.PerformanceSampleTaken {
	return m.ring.Latest(n)
}
