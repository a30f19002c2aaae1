package filter

import (
	"context"
	"runtime"
	"sync"

	"github.com/nesati/goplex/plex"
)

// EvaluatorOption configures an evaluator.
type EvaluatorOption func(*ConcurrentEvaluator)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(workers int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		e.workerCount = workers
	}
}

// WithBatchSize sets the slice size below which evaluation stays
// sequential, and the minimum chunk handed to a worker above it.
func WithBatchSize(size int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		e.batchSize = size
	}
}

// ConcurrentEvaluator applies filters to item slices, fanning large slices
// out over a worker pool. It implements Evaluator and BatchEvaluator.
//
// Matched items are returned in their input order. Items are not reloaded
// during evaluation, so a slice fetched once may be evaluated concurrently.
type ConcurrentEvaluator struct {
	workerCount int
	batchSize   int
	pool        WorkerPool
}

// NewConcurrentEvaluator returns an evaluator with one worker per CPU.
func NewConcurrentEvaluator(opts ...EvaluatorOption) *ConcurrentEvaluator {
	e := &ConcurrentEvaluator{
		workerCount: runtime.GOMAXPROCS(0),
		batchSize:   100,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.pool = NewWorkerPool(e.workerCount)

	return e
}

// Evaluate returns the items matching the filter, in input order.
func (e *ConcurrentEvaluator) Evaluate(ctx context.Context, filter CompiledFilter, items []plex.Item) ([]plex.Item, error) {
	if len(items) == 0 {
		return []plex.Item{}, nil
	}

	// Small slices are not worth the fan-out.
	if len(items) < e.batchSize || !filter.IsThreadSafe() {
		return evaluateSequential(filter, items), nil
	}

	return e.evaluateConcurrent(ctx, filter, items)
}

// EvaluateBatch runs several filters against the same items concurrently,
// one pool slot per filter. Each filter scans the slice sequentially
// inside its slot; fanning chunks out from within a pool task could leave
// every worker waiting on work only another worker can run. Filters that
// fail are left out of the result map.
func (e *ConcurrentEvaluator) EvaluateBatch(ctx context.Context, filters map[string]CompiledFilter, items []plex.Item) (map[string][]plex.Item, error) {
	if len(filters) == 0 || len(items) == 0 {
		return make(map[string][]plex.Item), nil
	}

	results := make(map[string][]plex.Item)
	resultChan := make(chan BatchResult, len(filters))

	var wg sync.WaitGroup
	for name, filter := range filters {
		wg.Add(1)
		name := name
		filter := filter

		err := e.pool.Submit(func() {
			defer wg.Done()

			select {
			case <-ctx.Done():
				resultChan <- BatchResult{
					FilterName: name,
					Error:      ctx.Err(),
				}
				return
			default:
			}

			resultChan <- BatchResult{
				FilterName: name,
				Matches:    evaluateSequential(filter, items),
			}
		})

		if err != nil {
			wg.Done()
			return nil, err
		}
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for result := range resultChan {
		if result.Error != nil {
			continue
		}
		results[result.FilterName] = result.Matches
	}

	return results, nil
}

func evaluateSequential(filter CompiledFilter, items []plex.Item) []plex.Item {
	matches := make([]plex.Item, 0, len(items)/10)
	for _, item := range items {
		if filter.Evaluate(item) {
			matches = append(matches, item)
		}
	}
	return matches
}

// evaluateConcurrent splits the slice into contiguous chunks, evaluates
// them on the pool and stitches the matches back together in input order.
func (e *ConcurrentEvaluator) evaluateConcurrent(ctx context.Context, filter CompiledFilter, items []plex.Item) ([]plex.Item, error) {
	chunkSize := max(len(items)/e.workerCount, e.batchSize)

	type chunkResult struct {
		matches []plex.Item
		order   int
	}

	resultChan := make(chan chunkResult, (len(items)/chunkSize)+1)
	var wg sync.WaitGroup

	chunkIndex := 0
	for i := 0; i < len(items); i += chunkSize {
		end := min(i+chunkSize, len(items))

		wg.Add(1)
		chunk := items[i:end]
		index := chunkIndex
		chunkIndex++

		err := e.pool.Submit(func() {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			default:
			}

			resultChan <- chunkResult{matches: evaluateSequential(filter, chunk), order: index}
		})

		if err != nil {
			wg.Done()
			return nil, err
		}
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make(map[int][]plex.Item)
	for result := range resultChan {
		results[result.order] = result.matches
	}

	// Cancelled evaluations drop chunks, so report the cancellation rather
	// than a partial result.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalMatches := 0
	for i := 0; i < len(results); i++ {
		totalMatches += len(results[i])
	}

	allMatches := make([]plex.Item, 0, totalMatches)
	for i := 0; i < len(results); i++ {
		allMatches = append(allMatches, results[i]...)
	}

	return allMatches, nil
}

// Stop shuts down the evaluator's worker pool.
func (e *ConcurrentEvaluator) Stop(ctx context.Context) error {
	return e.pool.Stop(ctx)
}
