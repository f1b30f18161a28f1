// Package luaeval provides the sandboxed expression evaluator shared
// by the breakpoint registry and the console engine.
//
// Expressions use Lua syntax and evaluate against a bound scope of
// host-exposed named values ("total > 100", "user.name"). The state is
// sandboxed: no file access, no process access, no code loading. All
// evaluation is bounded by the caller's context.
package luaeval
