package luaeval

import "errors"

// Sentinel errors for expression evaluation.
var (
	// ErrExpression is the class of all parse and evaluation failures.
	ErrExpression = errors.New("expression error")

	// ErrEvalTimeout is returned when evaluation exceeds its deadline.
	ErrEvalTimeout = errors.New("expression evaluation timed out")

	// ErrClosed is returned when the evaluator has been closed.
	ErrClosed = errors.New("evaluator is closed")
)

// ExpressionError describes a parse or evaluation failure for a single
// expression. It matches ErrExpression under errors.Is.
type ExpressionError struct {
	// Expr is the expression that failed.
	Expr string

	// Detail is the underlying parser or runtime message.
	Detail string
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return "expression " + quoteExpr(e.Expr) + ": " + e.Detail
}

// Is allows errors.Is to match ExpressionError with ErrExpression.
func (e *ExpressionError) Is(target error) bool {
	return target == ErrExpression
}

// quoteExpr quotes an expression for error messages, truncating long input.
func quoteExpr(s string) string {
	const max = 64
	if len(s) > max {
		s = s[:max] + "..."
	}
	return "\"" + s + "\""
}
