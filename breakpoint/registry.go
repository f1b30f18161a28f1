package breakpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/events"
	"github.com/dshills/devprobe/internal/logging"
	"github.com/dshills/devprobe/internal/luaeval"
)

// Breakpoint represents a cooperative trigger point registered by the
// host. It is owned exclusively by the Registry; accessors return
// copies.
type Breakpoint struct {
	// ID is a unique identifier for this breakpoint.
	ID int

	// Location is the symbolic site name supplied by the host.
	Location string

	// Condition is the expression evaluated at checkpoints.
	// Empty means unconditional (always true).
	Condition string

	// Enabled indicates if the breakpoint participates in evaluation.
	Enabled bool

	// HitCount is the number of times this breakpoint has fired.
	HitCount int

	// CreatedAt is when the breakpoint was registered.
	CreatedAt time.Time
}

// Publisher is the subset of the event bus the registry publishes on.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Registry stores breakpoint definitions and evaluates them at
// cooperative checkpoints. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// All breakpoints by ID
	breakpoints map[int]*Breakpoint

	// Breakpoints grouped by location, in registration order
	byLocation map[string][]*Breakpoint

	// Next breakpoint ID
	nextID int

	eval        *luaeval.Evaluator
	bus         Publisher
	log         *logging.Logger
	evalTimeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithEvalTimeout bounds a single condition evaluation.
func WithEvalTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.evalTimeout = d
		}
	}
}

// NewRegistry creates a breakpoint registry that publishes hit and
// alert events on the given bus.
func NewRegistry(bus Publisher, opts ...Option) *Registry {
	r := &Registry{
		breakpoints: make(map[int]*Breakpoint),
		byLocation:  make(map[string][]*Breakpoint),
		nextID:      1,
		eval:        luaeval.New(),
		bus:         bus,
		log:         logging.Null,
		evalTimeout: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases the registry's evaluator.
func (r *Registry) Close() {
	r.eval.Close()
}

// Register adds a breakpoint at the given location. An empty condition
// makes the breakpoint unconditional. The condition is compiled lazily
// on first checkpoint evaluation.
func (r *Registry) Register(location, condition string) (int, error) {
	if location == "" {
		return 0, ErrEmptyLocation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bp := &Breakpoint{
		ID:        r.nextID,
		Location:  location,
		Condition: condition,
		Enabled:   true,
		CreatedAt: time.Now(),
	}
	r.nextID++

	r.breakpoints[bp.ID] = bp
	r.byLocation[location] = append(r.byLocation[location], bp)

	r.log.Debug("breakpoint registered: id=%d location=%s", bp.ID, location)
	return bp.ID, nil
}

// Remove deletes a breakpoint by ID.
func (r *Registry) Remove(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.breakpoints[id]
	if !ok {
		return ErrNotFound
	}

	delete(r.breakpoints, id)

	bps := r.byLocation[bp.Location]
	for i, b := range bps {
		if b.ID == id {
			r.byLocation[bp.Location] = append(bps[:i], bps[i+1:]...)
			break
		}
	}
	if len(r.byLocation[bp.Location]) == 0 {
		delete(r.byLocation, bp.Location)
	}

	return nil
}

// SetEnabled enables or disables a breakpoint.
func (r *Registry) SetEnabled(id int, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.breakpoints[id]
	if !ok {
		return ErrNotFound
	}
	bp.Enabled = enabled
	return nil
}

// SetCondition replaces the condition for a breakpoint.
func (r *Registry) SetCondition(id int, condition string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.breakpoints[id]
	if !ok {
		return ErrNotFound
	}
	bp.Condition = condition
	return nil
}

// Get returns a copy of a breakpoint by ID.
func (r *Registry) Get(id int) (Breakpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bp, ok := r.breakpoints[id]
	if !ok {
		return Breakpoint{}, false
	}
	return *bp, true
}

// All returns copies of all breakpoints in registration order.
func (r *Registry) All() []Breakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Breakpoint, 0, len(r.breakpoints))
	for id := 1; id < r.nextID; id++ {
		if bp, ok := r.breakpoints[id]; ok {
			result = append(result, *bp)
		}
	}
	return result
}

// ForLocation returns copies of the breakpoints at a location, in
// registration order.
func (r *Registry) ForLocation(location string) []Breakpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bps := r.byLocation[location]
	result := make([]Breakpoint, len(bps))
	for i, bp := range bps {
		result[i] = *bp
	}
	return result
}

// Clear removes all breakpoints.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.breakpoints = make(map[int]*Breakpoint)
	r.byLocation = make(map[string][]*Breakpoint)
}

// Checkpoint evaluates the enabled breakpoints at the given location
// against the supplied context, in registration order. The first
// condition that evaluates true publishes a single BreakpointHit event
// and increments that breakpoint's hit count; evaluation then stops
// for this call. Evaluation errors raise an alert per breakpoint and
// evaluation continues with the remaining breakpoints.
//
// Checkpoint never blocks the caller beyond evaluation cost and never
// halts host execution. Returns true when a hit was published.
func (r *Registry) Checkpoint(location string, hostCtx map[string]any) bool {
	// Snapshot by value so a concurrent SetCondition cannot race the
	// reads below.
	r.mu.RLock()
	candidates := make([]Breakpoint, 0, len(r.byLocation[location]))
	for _, bp := range r.byLocation[location] {
		if bp.Enabled {
			candidates = append(candidates, *bp)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return false
	}

	for _, bp := range candidates {
		matched, err := r.evaluate(bp.Condition, hostCtx)
		if err != nil {
			r.log.Warn("breakpoint %d condition failed: %v", bp.ID, err)
			r.raiseAlert(&bp, err)
			continue
		}
		if !matched {
			continue
		}

		hitCount := r.recordHit(bp.ID)
		if hitCount == 0 {
			// Removed concurrently between snapshot and hit.
			continue
		}

		payload := events.BreakpointHit{
			BreakpointID: bp.ID,
			Location:     location,
			Condition:    bp.Condition,
			HitCount:     hitCount,
			Context:      snapshotContext(hostCtx),
		}
		ev := event.NewEvent(events.TopicBreakpointHit, payload, "breakpoint")
		_ = r.bus.Publish(context.Background(), ev)
		return true
	}

	return false
}

// evaluate runs one condition against the host context.
func (r *Registry) evaluate(condition string, hostCtx map[string]any) (bool, error) {
	if condition == "" {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.evalTimeout)
	defer cancel()

	result, err := r.eval.EvalWith(ctx, condition, hostCtx)
	if err != nil {
		return false, err
	}
	return luaeval.Truthy(result), nil
}

// recordHit increments and returns the hit count, or 0 when the
// breakpoint no longer exists.
func (r *Registry) recordHit(id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.breakpoints[id]
	if !ok {
		return 0
	}
	bp.HitCount++
	return bp.HitCount
}

// raiseAlert publishes an evaluation failure alert for one breakpoint.
func (r *Registry) raiseAlert(bp *Breakpoint, err error) {
	payload := events.AlertRaised{
		Kind:      events.AlertEvaluationFailure,
		Source:    "breakpoint",
		Message:   fmt.Sprintf("condition for breakpoint %d at %s: %v", bp.ID, bp.Location, err),
		Timestamp: time.Now(),
	}
	ev := event.NewEvent(events.TopicAlertRaised, payload, "breakpoint")
	_ = r.bus.Publish(context.Background(), ev)
}

// snapshotContext shallow-copies the host context so the published
// payload cannot observe later host mutations of the map.
func snapshotContext(hostCtx map[string]any) map[string]any {
	if hostCtx == nil {
		return nil
	}
	snap := make(map[string]any, len(hostCtx))
	for k, v := range hostCtx {
		snap[k] = v
	}
	return snap
}
