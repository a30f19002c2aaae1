// Package filter compiles boolean expressions and evaluates them against
// library items, as a client-side complement to server-side matching.
// Expressions use the expr language with item attributes and helper
// functions in scope:
//
//	ViewCount == 0 and daysSince(AddedAt) > 90
//	hasGenre("Horror") and Year < 1990
//	attr("originallyAvailableAt") startsWith "2024"
package filter

import (
	"context"

	"github.com/nesati/goplex/plex"
)

// Filter reports whether an item matches.
type Filter interface {
	Evaluate(item plex.Item) bool
}

// CompiledFilter is a parsed filter ready for repeated evaluation.
type CompiledFilter interface {
	Filter

	// Expression returns the source expression the filter was compiled from.
	Expression() string

	// IsThreadSafe reports whether the filter may be evaluated from
	// multiple goroutines at once.
	IsThreadSafe() bool
}

// Compiler turns filter expressions into executable filters.
type Compiler interface {
	Compile(expression string) (CompiledFilter, error)
}

// CachingCompiler is a Compiler that memoizes compiled expressions.
type CachingCompiler interface {
	Compiler

	// Clear drops all cached filters.
	Clear()

	// Size returns the number of cached filters.
	Size() int
}

// Evaluator applies a compiled filter to a slice of items.
type Evaluator interface {
	Evaluate(ctx context.Context, filter CompiledFilter, items []plex.Item) ([]plex.Item, error)
}

// BatchEvaluator applies several filters to the same items concurrently.
type BatchEvaluator interface {
	EvaluateBatch(ctx context.Context, filters map[string]CompiledFilter, items []plex.Item) (map[string][]plex.Item, error)
}

// BatchResult carries the outcome of one filter in a batch evaluation.
type BatchResult struct {
	FilterName string
	Matches    []plex.Item
	Error      error
}

// WorkerPool executes submitted tasks with bounded concurrency.
type WorkerPool interface {
	// Submit hands a task to the pool.
	Submit(work func()) error

	// Stop drains the pool, waiting no longer than ctx allows.
	Stop(ctx context.Context) error
}
