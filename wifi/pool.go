package wifi

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the number of background connects that may run at once.
const DefaultWorkers = 4

// workerPool runs submitted tasks in the background with bounded concurrency.
type workerPool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = 1
	}
	return &workerPool{sem: semaphore.NewWeighted(int64(size))}
}

// Go schedules task without blocking the caller.
func (p *workerPool) Go(task func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Acquire only fails on a cancelled context, which Background never is.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		task()
	}()
}

// Wait blocks until every submitted task has returned.
func (p *workerPool) Wait() {
	p.wg.Wait()
}
