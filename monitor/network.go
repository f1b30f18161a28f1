package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/events"
	"github.com/dshills/devprobe/internal/logging"
)

// NetworkState is the lifecycle state of a network event.
type NetworkState string

// Network event states.
const (
	// StatePending means the request was observed and no response yet.
	StatePending NetworkState = "pending"

	// StateCompleted means a response was paired to the request.
	StateCompleted NetworkState = "completed"

	// StateFailed means the request failed or timed out.
	StateFailed NetworkState = "failed"
)

// RequestInfo describes an observed outgoing request.
type RequestInfo struct {
	// Method is the request method.
	Method string

	// URL is the request URL.
	URL string

	// Headers are the request headers.
	Headers map[string]string

	// BodySize is the request body size in bytes.
	BodySize int64
}

// ResponseInfo describes an observed response.
type ResponseInfo struct {
	// Status is the response status code.
	Status int

	// Headers are the response headers.
	Headers map[string]string

	// BodySize is the response body size in bytes.
	BodySize int64
}

// NetworkEvent is one observed request/response pair. It is owned by
// the monitor and immutable once completed or failed; accessors return
// copies.
type NetworkEvent struct {
	// ID identifies the event.
	ID string

	// State is the lifecycle state.
	State NetworkState

	// Request describes the observed request.
	Request RequestInfo

	// Response describes the observed response, when completed.
	Response ResponseInfo

	// Error describes the failure, when failed.
	Error string

	// StartedAt is when the request was observed.
	StartedAt time.Time

	// FinishedAt is when the response or failure was observed.
	FinishedAt time.Time

	// Latency is FinishedAt minus StartedAt for completed events.
	Latency time.Duration
}

// NetworkMonitor consumes request/response observations from a
// host-supplied interception hook and maintains the network event
// table. Pending events older than the staleness window are swept and
// marked failed.
type NetworkMonitor struct {
	mu       sync.Mutex
	table    map[string]*NetworkEvent
	order    []string // event IDs in observation order
	capacity int      // max retained events; oldest evicted

	staleness time.Duration
	nowFn     func() time.Time
	bus       Publisher
	log       *logging.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NetworkOption configures a NetworkMonitor.
type NetworkOption func(*NetworkMonitor)

// WithNetworkLogger sets the monitor logger.
func WithNetworkLogger(log *logging.Logger) NetworkOption {
	return func(m *NetworkMonitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithStalenessWindow sets how long an event may stay pending before
// it is swept as timed out.
func WithStalenessWindow(d time.Duration) NetworkOption {
	return func(m *NetworkMonitor) {
		if d > 0 {
			m.staleness = d
		}
	}
}

// WithNetworkClock injects the time source.
func WithNetworkClock(now func() time.Time) NetworkOption {
	return func(m *NetworkMonitor) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// NewNetworkMonitor creates a network monitor retaining at most
// capacity events.
func NewNetworkMonitor(bus Publisher, capacity int, opts ...NetworkOption) *NetworkMonitor {
	if capacity < 1 {
		capacity = 1
	}
	m := &NetworkMonitor{
		table:     make(map[string]*NetworkEvent),
		capacity:  capacity,
		staleness: 30 * time.Second,
		nowFn:     time.Now,
		bus:       bus,
		log:       logging.Null,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the staleness sweeper.
func (m *NetworkMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.sweepLoop(ctx)
	return nil
}

// Stop cancels the sweeper and waits for it to finish.
func (m *NetworkMonitor) Stop() error {
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

// OnRequestObserved records a new pending network event and returns
// its ID. Called by the host's interception hook.
func (m *NetworkMonitor) OnRequestObserved(req RequestInfo) string {
	ev := &NetworkEvent{
		ID:        event.GenerateID(),
		State:     StatePending,
		Request:   req,
		StartedAt: m.nowFn(),
	}

	m.mu.Lock()
	m.table[ev.ID] = ev
	m.order = append(m.order, ev.ID)
	if len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.table, oldest)
	}
	snapshot := *ev
	m.mu.Unlock()

	m.publishUpdate(snapshot)
	return ev.ID
}

// OnResponseObserved pairs a response to a pending event and computes
// its latency. An unknown or already-terminal ID is dropped: the table
// is unchanged and a SamplingFailure alert is raised.
func (m *NetworkMonitor) OnResponseObserved(id string, resp ResponseInfo) {
	now := m.nowFn()

	m.mu.Lock()
	ev, ok := m.table[id]
	if !ok || ev.State != StatePending {
		m.mu.Unlock()
		m.dropObservation(id, "response")
		return
	}

	ev.State = StateCompleted
	ev.Response = resp
	ev.FinishedAt = now
	ev.Latency = now.Sub(ev.StartedAt)
	if ev.Latency < 0 {
		ev.Latency = 0
	}
	snapshot := *ev
	m.mu.Unlock()

	m.publishUpdate(snapshot)
}

// OnFailureObserved marks a pending event failed. An unknown or
// already-terminal ID is dropped with a SamplingFailure alert.
func (m *NetworkMonitor) OnFailureObserved(id string, cause error) {
	now := m.nowFn()

	m.mu.Lock()
	ev, ok := m.table[id]
	if !ok || ev.State != StatePending {
		m.mu.Unlock()
		m.dropObservation(id, "failure")
		return
	}

	ev.State = StateFailed
	if cause != nil {
		ev.Error = cause.Error()
	}
	ev.FinishedAt = now
	snapshot := *ev
	m.mu.Unlock()

	m.publishUpdate(snapshot)
}

// Events returns copies of all retained events in observation order.
func (m *NetworkMonitor) Events() []NetworkEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]NetworkEvent, 0, len(m.order))
	for _, id := range m.order {
		if ev, ok := m.table[id]; ok {
			out = append(out, *ev)
		}
	}
	return out
}

// Get returns a copy of one event.
func (m *NetworkMonitor) Get(id string) (NetworkEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.table[id]
	if !ok {
		return NetworkEvent{}, false
	}
	return *ev, true
}

// sweepLoop periodically fails pending events older than the
// staleness window.
func (m *NetworkMonitor) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := m.staleness / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep marks stale pending events failed with a timeout.
func (m *NetworkMonitor) sweep() {
	now := m.nowFn()
	cutoff := now.Add(-m.staleness)

	var stale []NetworkEvent

	m.mu.Lock()
	for _, id := range m.order {
		ev, ok := m.table[id]
		if !ok || ev.State != StatePending {
			continue
		}
		if ev.StartedAt.Before(cutoff) {
			ev.State = StateFailed
			ev.Error = "timeout"
			ev.FinishedAt = now
			stale = append(stale, *ev)
		}
	}
	m.mu.Unlock()

	for _, ev := range stale {
		m.log.Warn("network event %s swept as stale", ev.ID)
		m.publishUpdate(ev)
		alert := events.AlertRaised{
			Kind:      events.AlertTimeout,
			Source:    "network",
			Message:   fmt.Sprintf("request %s %s timed out", ev.Request.Method, ev.Request.URL),
			Timestamp: now,
		}
		_ = m.bus.Publish(context.Background(), event.NewEvent(events.TopicAlertRaised, alert, "network"))
	}
}

// dropObservation raises the alert for an observation that could not
// be paired to a pending event.
func (m *NetworkMonitor) dropObservation(id, what string) {
	m.log.Warn("dropped network %s for id=%s", what, id)
	alert := events.AlertRaised{
		Kind:      events.AlertSamplingFailure,
		Source:    "network",
		Message:   fmt.Sprintf("%s observed for unknown or finished event %s", what, id),
		Timestamp: m.nowFn(),
	}
	_ = m.bus.Publish(context.Background(), event.NewEvent(events.TopicAlertRaised, alert, "network"))
}

// publishUpdate emits the NetworkEventUpdated event for a snapshot.
func (m *NetworkMonitor) publishUpdate(ev NetworkEvent) {
	payload := events.NetworkEventUpdated{
		EventID: ev.ID,
		State:   string(ev.State),
		Method:  ev.Request.Method,
		URL:     ev.Request.URL,
		Status:  ev.Response.Status,
		Latency: ev.Latency,
	}
	_ = m.bus.Publish(context.Background(), event.NewEvent(events.TopicNetworkUpdated, payload, "network"))
}
