// Package topic provides hierarchical event topics with wildcard
// pattern matching. Topics use dot notation ("debug.breakpoint.hit");
// patterns may contain "*" (one segment) or "**" (any segments).
package topic
