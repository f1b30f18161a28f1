package console

import "time"

// ResultKind is the variant of a console entry's result.
type ResultKind string

// Result kinds.
const (
	// KindValue means the input produced a printable value.
	KindValue ResultKind = "value"

	// KindError means the input failed; Err carries the failure.
	KindError ResultKind = "error"

	// KindVoid means the input executed with no value (e.g. :clear).
	KindVoid ResultKind = "void"
)

// Entry is one executed console input with its result. Entries are
// retained in a capped, FIFO-evicted history.
type Entry struct {
	// Input is the text that was executed.
	Input string

	// Timestamp is when the input was executed.
	Timestamp time.Time

	// Kind is the result variant.
	Kind ResultKind

	// Value is the rendered result when Kind is KindValue.
	Value string

	// Err is the captured failure when Kind is KindError.
	Err error
}
