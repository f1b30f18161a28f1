package luaeval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestEvaluator_Eval_Arithmetic(t *testing.T) {
	e := New()
	defer e.Close()

	got, err := e.Eval(context.Background(), "1 + 2")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != int64(3) {
		t.Errorf("expected 3, got %v (%T)", got, got)
	}
}

func TestEvaluator_Eval_BoundScope(t *testing.T) {
	e := New()
	defer e.Close()

	e.Bind(map[string]any{
		"total": 150,
		"name":  "checkout",
		"items": []any{"a", "b"},
	})

	tests := []struct {
		expr string
		want any
	}{
		{"total > 100", true},
		{"total < 100", false},
		{"total * 2", int64(300)},
		{"name", "checkout"},
		{"#items", int64(2)},
		{"items[1]", "a"},
	}

	for _, tt := range tests {
		got, err := e.Eval(context.Background(), tt.expr)
		if err != nil {
			t.Errorf("eval %q: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("eval %q: expected %v, got %v", tt.expr, tt.want, got)
		}
	}
}

func TestEvaluator_Eval_NestedScope(t *testing.T) {
	e := New()
	defer e.Close()

	e.Bind(map[string]any{
		"user": map[string]any{"name": "ada", "age": 36},
	})

	got, err := e.Eval(context.Background(), "user.name")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != "ada" {
		t.Errorf("expected ada, got %v", got)
	}
}

func TestEvaluator_Bind_ReplacesScope(t *testing.T) {
	e := New()
	defer e.Close()

	e.Bind(map[string]any{"x": 1})
	e.Bind(map[string]any{"y": 2})

	got, err := e.Eval(context.Background(), "x == nil")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != true {
		t.Error("expected previously bound name to be cleared")
	}
}

func TestEvaluator_Eval_SyntaxError(t *testing.T) {
	e := New()
	defer e.Close()

	_, err := e.Eval(context.Background(), "1 +")
	if !errors.Is(err, ErrExpression) {
		t.Errorf("expected ErrExpression, got %v", err)
	}
}

func TestEvaluator_Eval_RuntimeError(t *testing.T) {
	e := New()
	defer e.Close()

	_, err := e.Eval(context.Background(), `nil .. "x"`)
	if !errors.Is(err, ErrExpression) {
		t.Errorf("expected ErrExpression, got %v", err)
	}

	// The state survives a failed evaluation.
	got, err := e.Eval(context.Background(), "40 + 2")
	if err != nil {
		t.Fatalf("eval after error: %v", err)
	}
	if got != int64(42) {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestEvaluator_Eval_Timeout(t *testing.T) {
	e := New()
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := e.Eval(ctx, "(function() while true do end end)()")
	if !errors.Is(err, ErrEvalTimeout) {
		t.Fatalf("expected ErrEvalTimeout, got %v", err)
	}

	// The state survives a timed-out evaluation.
	got, err := e.Eval(context.Background(), "7")
	if err != nil {
		t.Fatalf("eval after timeout: %v", err)
	}
	if got != int64(7) {
		t.Errorf("expected 7, got %v", got)
	}
}

func TestEvaluator_Sandbox(t *testing.T) {
	e := New()
	defer e.Close()

	// Filesystem, process, and loader access is stripped.
	for _, expr := range []string{
		"dofile == nil",
		"loadfile == nil",
		"load == nil",
		"os == nil",
		"io == nil",
		"require == nil",
	} {
		got, err := e.Eval(context.Background(), expr)
		if err != nil {
			t.Errorf("eval %q: %v", expr, err)
			continue
		}
		if got != true {
			t.Errorf("expected %q to hold", expr)
		}
	}

	// Pure library functions remain.
	got, err := e.Eval(context.Background(), "math.max(3, 9)")
	if err != nil {
		t.Fatalf("eval math.max: %v", err)
	}
	if got != int64(9) {
		t.Errorf("expected 9, got %v", got)
	}
}

func TestEvaluator_EvalWith(t *testing.T) {
	e := New()
	defer e.Close()

	got, err := e.EvalWith(context.Background(), "total > 100", map[string]any{"total": 150})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != true {
		t.Errorf("expected true, got %v", got)
	}
}

func TestEvaluator_EvalWith_ConcurrentScopes(t *testing.T) {
	e := New()
	defer e.Close()

	// Each goroutine must see only its own scope: bind and eval happen
	// under one lock, so interleaving cannot mix them.
	scopes := []struct {
		total int
		want  any
	}{
		{150, true},
		{50, false},
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(scopes))
	for _, sc := range scopes {
		sc := sc
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				got, err := e.EvalWith(context.Background(), "total > 100", map[string]any{"total": sc.total})
				if err != nil {
					errs <- err
					return
				}
				if got != sc.want {
					errs <- fmt.Errorf("total=%d: expected %v, got %v", sc.total, sc.want, got)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent eval: %v", err)
	}
}

func TestEvaluator_Closed(t *testing.T) {
	e := New()
	e.Close()
	e.Close() // double close is a no-op

	if _, err := e.Eval(context.Background(), "1"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{float64(0), true}, // Lua semantics: only nil and false are falsy
		{"", true},
	}

	for _, tt := range tests {
		if got := Truthy(tt.value); got != tt.want {
			t.Errorf("Truthy(%v): expected %v, got %v", tt.value, tt.want, got)
		}
	}
}
