package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/devprobe/breakpoint"
	"github.com/dshills/devprobe/event"
	"github.com/dshills/devprobe/events"
)

// capturingBus records published events for assertions.
type capturingBus struct {
	mu     sync.Mutex
	events []any
}

func (b *capturingBus) Publish(_ context.Context, ev any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *capturingBus) results() []events.ConsoleResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.ConsoleResult
	for _, ev := range b.events {
		if e, ok := ev.(event.Event[events.ConsoleResult]); ok {
			out = append(out, e.Payload)
		}
	}
	return out
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *capturingBus) {
	t.Helper()
	bus := &capturingBus{}
	e := NewEngine(bus, 10, opts...)
	t.Cleanup(e.Close)
	return e, bus
}

func TestEngine_Execute_VariableRead(t *testing.T) {
	e, _ := newTestEngine(t)

	e.BindContext(map[string]any{
		"total": 150,
		"user":  map[string]any{"name": "ada", "address": map[string]any{"city": "london"}},
	})

	tests := []struct {
		input string
		want  string
	}{
		{"total", "150"},
		{"user.name", "ada"},
		{"user.address.city", "london"},
	}

	for _, tt := range tests {
		entry := e.Execute(tt.input)
		if entry.Kind != KindValue {
			t.Errorf("execute %q: expected value, got %s (%v)", tt.input, entry.Kind, entry.Err)
			continue
		}
		if entry.Value != tt.want {
			t.Errorf("execute %q: expected %q, got %q", tt.input, tt.want, entry.Value)
		}
	}
}

func TestEngine_Execute_VariableRead_Object(t *testing.T) {
	e, _ := newTestEngine(t)
	e.BindContext(map[string]any{"user": map[string]any{"name": "ada"}})

	entry := e.Execute("user")
	if entry.Kind != KindValue {
		t.Fatalf("expected value, got %s (%v)", entry.Kind, entry.Err)
	}
	if !strings.Contains(entry.Value, `"name"`) || !strings.Contains(entry.Value, `"ada"`) {
		t.Errorf("expected JSON rendering, got %q", entry.Value)
	}
}

func TestEngine_Execute_UnknownVariable(t *testing.T) {
	e, _ := newTestEngine(t)
	e.BindContext(map[string]any{"total": 1})

	entry := e.Execute("missing")
	if entry.Kind != KindError {
		t.Fatalf("expected error, got %s", entry.Kind)
	}
	if !errors.Is(entry.Err, ErrUnknownVariable) {
		t.Errorf("expected ErrUnknownVariable, got %v", entry.Err)
	}
}

func TestEngine_Execute_NoContext(t *testing.T) {
	e, _ := newTestEngine(t)

	// Variable reads and context-dependent expressions both need a
	// bound context.
	for _, input := range []string{"total", "total > 100"} {
		entry := e.Execute(input)
		if !errors.Is(entry.Err, ErrNoContext) {
			t.Errorf("execute %q: expected ErrNoContext, got %v", input, entry.Err)
		}
	}

	// Pure literal expressions evaluate without a context.
	entry := e.Execute("1 + 2")
	if entry.Kind != KindValue {
		t.Fatalf("expected value, got %s (%v)", entry.Kind, entry.Err)
	}
	if entry.Value != "3" {
		t.Errorf("expected 3, got %q", entry.Value)
	}

	// Member names on the whitelisted stdlib roots are not context
	// references.
	tests := []struct {
		input string
		want  string
	}{
		{"math.floor(1.5)", "1"},
		{`string.len("abc")`, "3"},
	}
	for _, tt := range tests {
		entry := e.Execute(tt.input)
		if entry.Kind != KindValue {
			t.Fatalf("execute %q: expected value, got %s (%v)", tt.input, entry.Kind, entry.Err)
		}
		if entry.Value != tt.want {
			t.Errorf("execute %q: expected %q, got %q", tt.input, tt.want, entry.Value)
		}
	}
}

func TestEngine_Execute_Expression(t *testing.T) {
	e, _ := newTestEngine(t)
	e.BindContext(map[string]any{"total": 150, "items": 3})

	tests := []struct {
		input string
		want  string
	}{
		{"total > 100", "true"},
		{"total / items", "50"},
		{"total .. '!'", "150!"},
		{"math.min(total, 7)", "7"},
	}

	for _, tt := range tests {
		entry := e.Execute(tt.input)
		if entry.Kind != KindValue {
			t.Errorf("execute %q: expected value, got %s (%v)", tt.input, entry.Kind, entry.Err)
			continue
		}
		if entry.Value != tt.want {
			t.Errorf("execute %q: expected %q, got %q", tt.input, tt.want, entry.Value)
		}
	}
}

func TestEngine_Execute_ExpressionError(t *testing.T) {
	e, _ := newTestEngine(t)
	e.BindContext(map[string]any{"total": 1})

	entry := e.Execute("total +")
	if entry.Kind != KindError {
		t.Fatalf("expected error entry, got %s", entry.Kind)
	}
	if entry.Err == nil {
		t.Fatal("expected captured error")
	}

	// The engine keeps working after a failed input.
	entry = e.Execute("total + 1")
	if entry.Kind != KindValue || entry.Value != "2" {
		t.Errorf("expected recovery to value 2, got %s %q", entry.Kind, entry.Value)
	}
}

func TestEngine_Execute_Empty(t *testing.T) {
	e, _ := newTestEngine(t)

	entry := e.Execute("   ")
	if entry.Kind != KindVoid {
		t.Errorf("expected void for blank input, got %s", entry.Kind)
	}
}

func TestEngine_History_FIFO(t *testing.T) {
	bus := &capturingBus{}
	e := NewEngine(bus, 3)
	defer e.Close()

	for i := 1; i <= 5; i++ {
		e.Execute(fmt.Sprintf("%d", i))
	}

	history := e.History()
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	want := []string{"3", "4", "5"}
	for i := range want {
		if history[i].Input != want[i] {
			t.Errorf("history[%d]: expected %q, got %q", i, want[i], history[i].Input)
		}
	}
}

func TestEngine_Execute_PublishesResult(t *testing.T) {
	e, bus := newTestEngine(t)
	e.BindContext(map[string]any{"total": 150})

	e.Execute("total")
	e.Execute("missing")

	results := bus.results()
	if len(results) != 2 {
		t.Fatalf("expected 2 events, got %d", len(results))
	}
	if results[0].Kind != "value" || results[0].Value != "150" {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[1].Kind != "error" || results[1].ErrMessage == "" {
		t.Errorf("unexpected second result %+v", results[1])
	}
}

func TestEngine_BindContext_Unbind(t *testing.T) {
	e, _ := newTestEngine(t)

	e.BindContext(map[string]any{"total": 1})
	if entry := e.Execute("total"); entry.Kind != KindValue {
		t.Fatalf("expected value while bound, got %s", entry.Kind)
	}

	e.BindContext(nil)
	if entry := e.Execute("total"); !errors.Is(entry.Err, ErrNoContext) {
		t.Errorf("expected ErrNoContext after unbind, got %v", entry.Err)
	}
}

func TestEngine_Builtin_Help(t *testing.T) {
	e, _ := newTestEngine(t)

	entry := e.Execute(":help")
	if entry.Kind != KindValue {
		t.Fatalf("expected value, got %s", entry.Kind)
	}
	if !strings.Contains(entry.Value, ":breakpoints") {
		t.Errorf("expected help text, got %q", entry.Value)
	}
}

func TestEngine_Builtin_Unknown(t *testing.T) {
	e, _ := newTestEngine(t)

	entry := e.Execute(":nope")
	if !errors.Is(entry.Err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", entry.Err)
	}
}

func TestEngine_Builtin_Clear(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Execute("1")
	e.Execute("2")
	entry := e.Execute(":clear")
	if entry.Kind != KindVoid {
		t.Fatalf("expected void, got %s", entry.Kind)
	}

	// Only the :clear entry itself survives.
	history := e.History()
	if len(history) != 1 || history[0].Input != ":clear" {
		t.Errorf("expected history [:clear], got %v", history)
	}
}

// stubLister serves fixed breakpoints to the :breakpoints built-in.
type stubLister struct {
	bps []breakpoint.Breakpoint
}

func (s *stubLister) All() []breakpoint.Breakpoint { return s.bps }

func TestEngine_Builtin_Breakpoints(t *testing.T) {
	lister := &stubLister{bps: []breakpoint.Breakpoint{
		{ID: 1, Location: "checkout", Condition: "total > 100", Enabled: true, HitCount: 2},
		{ID: 2, Location: "login", Enabled: false},
	}}
	e, _ := newTestEngine(t, WithBreakpointLister(lister))

	entry := e.Execute(":breakpoints")
	if entry.Kind != KindValue {
		t.Fatalf("expected value, got %s (%v)", entry.Kind, entry.Err)
	}
	lines := strings.Split(entry.Value, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), entry.Value)
	}
	if !strings.Contains(lines[0], "#1 checkout") || !strings.Contains(lines[0], "hits=2") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "<always>") {
		t.Errorf("expected unconditional marker, got %q", lines[1])
	}
}

func TestEngine_Builtin_Breakpoints_Empty(t *testing.T) {
	e, _ := newTestEngine(t, WithBreakpointLister(&stubLister{}))

	entry := e.Execute(":breakpoints")
	if entry.Value != "no breakpoints" {
		t.Errorf("expected 'no breakpoints', got %q", entry.Value)
	}
}

// stubSampler serves a fixed memory sample to the :memdump built-in.
type stubSampler struct {
	sample events.MemorySampleTaken
	err    error
}

func (s *stubSampler) SampleNow() (events.MemorySampleTaken, error) {
	return s.sample, s.err
}

func TestEngine_Builtin_MemDump(t *testing.T) {
	sampler := &stubSampler{sample: events.MemorySampleTaken{
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UsedBytes:   1024,
		HeapObjects: 17,
	}}
	e, _ := newTestEngine(t, WithMemorySampler(sampler))

	entry := e.Execute(":memdump")
	if entry.Kind != KindValue {
		t.Fatalf("expected value, got %s (%v)", entry.Kind, entry.Err)
	}
	if !strings.Contains(entry.Value, `"usedBytes":1024`) {
		t.Errorf("expected usedBytes in dump, got %q", entry.Value)
	}
	if !strings.Contains(entry.Value, `"heapObjects":17`) {
		t.Errorf("expected heapObjects in dump, got %q", entry.Value)
	}
}

func TestEngine_Builtin_MemDump_Unwired(t *testing.T) {
	e, _ := newTestEngine(t)

	entry := e.Execute(":memdump")
	if !errors.Is(entry.Err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand for unwired :memdump, got %v", entry.Err)
	}
}
