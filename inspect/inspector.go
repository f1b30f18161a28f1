package inspect

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Snapshot is one captured named value. Snapshots are immutable;
// a new capture supersedes, never mutates.
type Snapshot struct {
	// Name is the exposed variable name.
	Name string

	// TypeTag is the declared Go type of the captured value.
	TypeTag string

	// Repr is the canonical representation used for diffing.
	Repr string

	// CapturedAt is when the snapshot was taken.
	CapturedAt time.Time
}

// Session is an ordered group of snapshots captured at one point in time.
type Session struct {
	// ID identifies the session.
	ID string

	// CapturedAt is when the session was captured.
	CapturedAt time.Time

	// Snapshots are ordered by name.
	Snapshots []Snapshot
}

// Change is one differing variable between two sessions.
type Change struct {
	// Name is the variable name present in both sessions.
	Name string

	// Old is the representation in the first session.
	Old string

	// New is the representation in the second session.
	New string
}

// Inspector captures variable snapshots grouped into sessions and
// diffs them. It is safe for concurrent use.
type Inspector struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // session IDs in capture order
	limit    int      // max retained sessions; 0 means unlimited
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithSessionLimit caps the number of retained sessions; the oldest
// session is evicted when the cap is exceeded.
func WithSessionLimit(n int) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.limit = n
		}
	}
}

// NewInspector creates an empty inspector.
func NewInspector(opts ...Option) *Inspector {
	i := &Inspector{
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Capture snapshots every named value in the context into a new
// session and returns the session ID.
func (i *Inspector) Capture(hostCtx map[string]any) string {
	now := time.Now()

	names := make([]string, 0, len(hostCtx))
	for name := range hostCtx {
		names = append(names, name)
	}
	sort.Strings(names)

	session := &Session{
		ID:         newSessionID(),
		CapturedAt: now,
		Snapshots:  make([]Snapshot, 0, len(names)),
	}
	for _, name := range names {
		v := hostCtx[name]
		session.Snapshots = append(session.Snapshots, Snapshot{
			Name:       name,
			TypeTag:    fmt.Sprintf("%T", v),
			Repr:       represent(v),
			CapturedAt: now,
		})
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.sessions[session.ID] = session
	i.order = append(i.order, session.ID)

	if i.limit > 0 && len(i.order) > i.limit {
		oldest := i.order[0]
		i.order = i.order[1:]
		delete(i.sessions, oldest)
	}

	return session.ID
}

// Session returns a copy of a captured session.
func (i *Inspector) Session(id string) (Session, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	s, ok := i.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return copySession(s), nil
}

// Sessions returns copies of all retained sessions in capture order.
func (i *Inspector) Sessions() []Session {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]Session, 0, len(i.order))
	for _, id := range i.order {
		out = append(out, copySession(i.sessions[id]))
	}
	return out
}

// Diff compares two sessions and returns the changes for names present
// in both whose representations differ, ordered by name. Equality is
// representation-level. Diffing a session against itself yields an
// empty sequence; swapping arguments swaps Old and New.
func (i *Inspector) Diff(idA, idB string) ([]Change, error) {
	i.mu.RLock()
	a, okA := i.sessions[idA]
	b, okB := i.sessions[idB]
	i.mu.RUnlock()

	if !okA || !okB {
		return nil, ErrSessionNotFound
	}

	reprA := make(map[string]string, len(a.Snapshots))
	for _, s := range a.Snapshots {
		reprA[s.Name] = s.Repr
	}

	var changes []Change
	for _, s := range b.Snapshots {
		old, ok := reprA[s.Name]
		if !ok {
			continue
		}
		if old != s.Repr {
			changes = append(changes, Change{Name: s.Name, Old: old, New: s.Repr})
		}
	}

	sort.Slice(changes, func(x, y int) bool {
		return changes[x].Name < changes[y].Name
	})
	return changes, nil
}

// Clear drops all retained sessions.
func (i *Inspector) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.sessions = make(map[string]*Session)
	i.order = nil
}

// represent renders a value into its canonical comparison form.
// JSON keeps map keys sorted, so the representation is stable.
func represent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// copySession returns a value copy with its own snapshot slice.
func copySession(s *Session) Session {
	out := *s
	out.Snapshots = make([]Snapshot, len(s.Snapshots))
	copy(out.Snapshots, s.Snapshots)
	return out
}

// newSessionID returns a random 16-character hex identifier.
func newSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000000")))[:16]
	}
	return hex.EncodeToString(b)
}
