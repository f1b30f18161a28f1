package topic

import "strings"

// Topic represents a hierarchical event type using dot notation.
// Examples: "debug.breakpoint.hit", "debug.memory.sample"
type Topic string

// Wildcard constants for pattern matching.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator is the character used to separate topic segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Parent returns the parent topic by removing the last segment.
// Returns an empty topic if there is no parent.
//
// Example: "debug.breakpoint.hit" -> "debug.breakpoint"
func (t Topic) Parent() Topic {
	s := string(t)
	idx := strings.LastIndex(s, Separator)
	if idx < 0 {
		return ""
	}
	return Topic(s[:idx])
}

// Base returns the last segment of the topic.
//
// Example: "debug.breakpoint.hit" -> "hit"
func (t Topic) Base() string {
	s := string(t)
	idx := strings.LastIndex(s, Separator)
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

// IsWildcard returns true if the topic contains any wildcard characters.
func (t Topic) IsWildcard() bool {
	return strings.Contains(string(t), WildcardSingle)
}

// IsValid returns true if the topic is valid.
// A valid topic:
//   - Is not empty
//   - Does not start or end with a separator
//   - Does not contain empty segments
func (t Topic) IsValid() bool {
	s := string(t)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, Separator) || strings.HasSuffix(s, Separator) {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Matches returns true if this topic matches the given pattern.
// The pattern may contain wildcards:
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Segments(), pattern.Segments())
}

// matchSegments performs recursive pattern matching on topic segments.
func matchSegments(topic, pattern []string) bool {
	if len(pattern) == 0 {
		return len(topic) == 0
	}

	if pattern[0] == WildcardMulti {
		// ** matches zero or more segments
		for skip := 0; skip <= len(topic); skip++ {
			if matchSegments(topic[skip:], pattern[1:]) {
				return true
			}
		}
		return false
	}

	if len(topic) == 0 {
		return false
	}

	if pattern[0] == WildcardSingle || pattern[0] == topic[0] {
		return matchSegments(topic[1:], pattern[1:])
	}

	return false
}
