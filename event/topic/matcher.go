package topic

import "sync"

// Matcher matches concrete event topics against a set of subscription
// patterns. The pattern population in a debug engine is small (one per
// subscriber), so a linear scan over the registered set is used rather
// than an index structure. It is safe for concurrent use.
type Matcher struct {
	mu       sync.RWMutex
	patterns map[Topic]int // pattern -> reference count
}

// NewMatcher creates a new topic matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		patterns: make(map[Topic]int),
	}
}

// Add adds a pattern to the matcher.
// The pattern may contain wildcards (* and **).
func (m *Matcher) Add(pattern Topic) {
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.patterns[pattern]++
}

// Remove removes one reference to a pattern from the matcher.
func (m *Matcher) Remove(pattern Topic) {
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.patterns[pattern] <= 1 {
		delete(m.patterns, pattern)
		return
	}
	m.patterns[pattern]--
}

// Has returns true if the pattern exists in the matcher.
func (m *Matcher) Has(pattern Topic) bool {
	if pattern == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.patterns[pattern]
	return ok
}

// Match returns all patterns that match the given topic.
// The topic should not contain wildcards - it represents an actual event topic.
func (m *Matcher) Match(eventTopic Topic) []Topic {
	if eventTopic == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Topic
	for pattern := range m.patterns {
		if eventTopic.Matches(pattern) {
			matched = append(matched, pattern)
		}
	}
	return matched
}

// Clear removes all patterns.
func (m *Matcher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.patterns = make(map[Topic]int)
}

// Count returns the number of distinct patterns registered.
func (m *Matcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.patterns)
}
