// Package console implements the debug console engine. Input is
// parsed into one of three forms: a built-in command (":breakpoints",
// ":clear", ":memdump"), a bare variable-read path resolved against
// the bound runtime context, or an arbitrary expression evaluated in a
// sandbox. Execution is synchronous and bounded by a timeout; every
// failure is captured in the returned entry rather than propagated.
package console
