package console

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/devprobe/breakpoint"
	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/events"
	"github.com/dshills/devprobe/internal/bounded"
	"github.com/dshills/devprobe/internal/logging"
	"github.com/dshills/devprobe/internal/luaeval"
)

// Publisher is the subset of the event bus the engine publishes on.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// BreakpointLister supplies the :breakpoints built-in.
type BreakpointLister interface {
	All() []breakpoint.Breakpoint
}

// MemorySampler supplies the :memdump built-in.
type MemorySampler interface {
	SampleNow() (events.MemorySampleTaken, error)
}

// varPath matches a bare variable-read path such as "user.address.city".
// Anything else is treated as an expression.
var varPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// Engine parses and executes console input against a bound runtime
// context. Execution is synchronous and bounded by a timeout; all
// expression failures are captured in the returned entry, never
// propagated as an engine failure.
type Engine struct {
	mu      sync.Mutex
	eval    *luaeval.Evaluator
	ctxJSON string // bound context as a JSON document, "" when unbound
	bound   bool

	history *bounded.Queue[Entry]

	bus         Publisher
	breakpoints BreakpointLister
	memory      MemorySampler
	log         *logging.Logger
	execTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithExecTimeout bounds a single execution.
func WithExecTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.execTimeout = d
		}
	}
}

// WithBreakpointLister wires the :breakpoints built-in.
func WithBreakpointLister(l BreakpointLister) Option {
	return func(e *Engine) {
		e.breakpoints = l
	}
}

// WithMemorySampler wires the :memdump built-in.
func WithMemorySampler(m MemorySampler) Option {
	return func(e *Engine) {
		e.memory = m
	}
}

// NewEngine creates a console engine with the given history capacity.
func NewEngine(bus Publisher, historyLimit int, opts ...Option) *Engine {
	e := &Engine{
		eval:        luaeval.New(),
		history:     bounded.New[Entry](historyLimit),
		bus:         bus,
		log:         logging.Null,
		execTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the engine's evaluator.
func (e *Engine) Close() {
	e.eval.Close()
}

// BindContext replaces the evaluation scope with the given named
// values. Passing nil unbinds the scope.
func (e *Engine) BindContext(hostCtx map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.eval.Bind(hostCtx)
	e.bound = hostCtx != nil

	doc := ""
	if hostCtx != nil {
		doc = "{}"
		for name, value := range hostCtx {
			next, err := sjson.Set(doc, name, value)
			if err != nil {
				e.log.Warn("context value %q not representable: %v", name, err)
				continue
			}
			doc = next
		}
	}
	e.ctxJSON = doc
}

// Execute runs one console input and returns the resulting entry.
// The entry is appended to history and a ConsoleResult event is
// published regardless of outcome.
func (e *Engine) Execute(text string) Entry {
	entry := Entry{
		Input:     text,
		Timestamp: time.Now(),
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		entry.Kind = KindVoid
	case strings.HasPrefix(trimmed, ":"):
		entry = e.runBuiltin(entry, trimmed)
	case varPath.MatchString(trimmed):
		entry = e.readVariable(entry, trimmed)
	default:
		entry = e.evalExpression(entry, trimmed)
	}

	e.history.Append(entry)
	e.publish(entry)
	return entry
}

// History returns the retained entries, oldest first.
func (e *Engine) History() []Entry {
	return e.history.Items()
}

// ClearHistory drops all retained entries.
func (e *Engine) ClearHistory() {
	e.history.Clear()
}

// readVariable resolves a bare path against the bound context document.
func (e *Engine) readVariable(entry Entry, path string) Entry {
	e.mu.Lock()
	doc := e.ctxJSON
	bound := e.bound
	e.mu.Unlock()

	if !bound {
		entry.Kind = KindError
		entry.Err = ErrNoContext
		return entry
	}

	result := gjson.Get(doc, path)
	if !result.Exists() {
		entry.Kind = KindError
		entry.Err = fmt.Errorf("%w: %s", ErrUnknownVariable, path)
		return entry
	}

	entry.Kind = KindValue
	if result.IsObject() || result.IsArray() {
		entry.Value = result.Raw
	} else {
		entry.Value = result.String()
	}
	return entry
}

// identifier finds candidate variable references in an expression.
var identifier = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// literalWords are identifiers that never refer to the bound context:
// expression keywords and the whitelisted stdlib roots.
var literalWords = map[string]bool{
	"and": true, "or": true, "not": true, "nil": true,
	"true": true, "false": true,
	"string": true, "table": true, "math": true,
}

// dependsOnContext reports whether the expression references any name
// that would come from the bound context. Identifiers preceded by a
// dot are member accesses (math.floor, string.len), not context names.
func dependsOnContext(expr string) bool {
	for _, loc := range identifier.FindAllStringIndex(expr, -1) {
		if loc[0] > 0 && expr[loc[0]-1] == '.' {
			continue
		}
		if !literalWords[expr[loc[0]:loc[1]]] {
			return true
		}
	}
	return false
}

// evalExpression evaluates arbitrary expression input.
func (e *Engine) evalExpression(entry Entry, expr string) Entry {
	e.mu.Lock()
	bound := e.bound
	e.mu.Unlock()

	if !bound && dependsOnContext(expr) {
		entry.Kind = KindError
		entry.Err = ErrNoContext
		return entry
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.execTimeout)
	defer cancel()

	value, err := e.eval.Eval(ctx, expr)
	if err != nil {
		entry.Kind = KindError
		entry.Err = err
		return entry
	}

	entry.Kind = KindValue
	entry.Value = renderValue(value)
	return entry
}

// publish emits the ConsoleResult event for an entry.
func (e *Engine) publish(entry Entry) {
	payload := events.ConsoleResult{
		Input:     entry.Input,
		Kind:      string(entry.Kind),
		Value:     entry.Value,
		Timestamp: entry.Timestamp,
	}
	if entry.Err != nil {
		payload.ErrMessage = entry.Err.Error()
	}
	ev := event.NewEvent(events.TopicConsoleResult, payload, "console")
	_ = e.bus.Publish(context.Background(), ev)
}

// renderValue renders an evaluation result for display.
func renderValue(v any) string {
	if v == nil {
		return "nil"
	}
	switch val := v.(type) {
	case string:
		return val
	case []any, map[string]any:
		doc, err := sjson.Set("{}", "v", val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return gjson.Get(doc, "v").Raw
	default:
		return fmt.Sprintf("%v", val)
	}
}
