package luaeval

import (
	"context"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Evaluator evaluates restricted expressions against a bound scope of
// named values. It wraps a sandboxed Lua state.
//
// An LState is not goroutine-safe, so all state access is serialized
// behind a mutex. Evaluation holds the lock only for the duration of a
// single expression, which is itself bounded by the caller's context.
type Evaluator struct {
	mu       sync.Mutex
	L        *lua.LState
	bound    []string // names currently set as globals
	hasScope bool
	compiled map[string]*lua.LFunction
	closed   bool
}

// New creates a sandboxed evaluator with no bound scope.
func New() *Evaluator {
	L := lua.NewState()
	installSandbox(L)
	return &Evaluator{
		L:        L,
		compiled: make(map[string]*lua.LFunction),
	}
}

// Close releases the underlying Lua state.
func (e *Evaluator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.L.Close()
}

// Bind replaces the evaluation scope with the given named values.
// Previously bound names are cleared first.
func (e *Evaluator) Bind(scope map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bindLocked(scope)
}

func (e *Evaluator) bindLocked(scope map[string]any) {
	if e.closed {
		return
	}

	for _, name := range e.bound {
		e.L.SetGlobal(name, lua.LNil)
	}
	e.bound = e.bound[:0]

	for name, value := range scope {
		e.L.SetGlobal(name, toLuaValue(e.L, value))
		e.bound = append(e.bound, name)
	}
	e.hasScope = scope != nil
}

// HasScope reports whether a scope has been bound.
func (e *Evaluator) HasScope() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasScope
}

// Eval evaluates a single expression and returns its value converted
// to a Go value. The expression is compiled on first use and cached.
// The context bounds execution time; on expiry ErrEvalTimeout is
// returned and the state remains usable.
func (e *Evaluator) Eval(ctx context.Context, expr string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evalLocked(ctx, expr)
}

func (e *Evaluator) evalLocked(ctx context.Context, expr string) (any, error) {
	if e.closed {
		return nil, ErrClosed
	}

	fn, ok := e.compiled[expr]
	if !ok {
		var err error
		fn, err = e.L.LoadString("return " + expr)
		if err != nil {
			return nil, &ExpressionError{Expr: expr, Detail: err.Error()}
		}
		e.compiled[expr] = fn
	}

	e.L.SetContext(ctx)
	defer func() {
		e.L.RemoveContext()
		e.L.SetTop(0)
	}()

	e.L.Push(fn)
	if err := e.L.PCall(0, 1, nil); err != nil {
		if ctx.Err() != nil {
			return nil, ErrEvalTimeout
		}
		return nil, &ExpressionError{Expr: expr, Detail: err.Error()}
	}

	return toGoValue(e.L.Get(-1)), nil
}

// EvalWith binds the scope and then evaluates the expression under a
// single lock acquisition, so concurrent callers cannot observe each
// other's scope. Used by checkpoint evaluation where the scope changes
// per call.
func (e *Evaluator) EvalWith(ctx context.Context, expr string, scope map[string]any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bindLocked(scope)
	return e.evalLocked(ctx, expr)
}
