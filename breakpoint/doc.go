// Package breakpoint implements cooperative breakpoints. The host
// instruments interesting call sites with Checkpoint calls; registered
// breakpoints whose condition evaluates true against the supplied
// context emit a hit event on the bus. Breakpoints never halt host
// execution: pausing, if a subscriber wants it, is the subscriber's
// own policy layered on the event stream.
package breakpoint
