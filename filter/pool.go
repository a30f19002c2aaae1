package filter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolStopped is returned when work is submitted to a stopped pool.
var ErrPoolStopped = errors.New("worker pool is stopped")

// submitRetryWait bounds how long Submit blocks on a full queue before
// rechecking whether the pool was stopped underneath it.
const submitRetryWait = time.Second

// workerPool runs submitted tasks on a fixed set of goroutines.
type workerPool struct {
	workers  int
	workChan chan func()
	stopOnce sync.Once
	stopped  atomic.Bool
	wg       sync.WaitGroup
}

// NewWorkerPool starts a pool with the given number of worker goroutines.
func NewWorkerPool(workers int) WorkerPool {
	if workers <= 0 {
		workers = 1
	}

	pool := &workerPool{
		workers:  workers,
		workChan: make(chan func(), workers*2),
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	for work := range p.workChan {
		if work != nil {
			work()
		}
	}
}

// Submit queues a task on the pool. When the queue is full it blocks, in
// intervals short enough to notice a concurrent Stop.
func (p *workerPool) Submit(work func()) error {
	for {
		if p.stopped.Load() {
			return ErrPoolStopped
		}
		select {
		case p.workChan <- work:
			return nil
		case <-time.After(submitRetryWait):
		}
	}
}

// Stop closes the queue and waits for in-flight tasks, giving up when ctx
// expires.
func (p *workerPool) Stop(ctx context.Context) error {
	var err error

	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.workChan)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})

	return err
}
