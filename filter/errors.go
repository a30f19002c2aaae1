package filter

import (
	"fmt"
)

type (
	// CompilationError indicates a filter expression could not be compiled.
	CompilationError struct {
		Expression string
		Reason     string
		Position   int // -1 if position is unknown
		Err        error
	}

	// EvaluationError indicates a filter could not be evaluated against an
	// item.
	EvaluationError struct {
		FilterName string
		ItemTitle  string
		Reason     string
		Err        error
	}
)

func (e *CompilationError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("compilation error at position %d in %q: %s", e.Position, e.Expression, e.Reason)
	}
	return fmt.Sprintf("compilation error in %q: %s", e.Expression, e.Reason)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error for filter %q on item %q: %s", e.FilterName, e.ItemTitle, e.Reason)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
