// Package transfer implements spec.md §5's TransferPool: a bounded set of
// concurrent workers that perform BlobStore reads and writes on behalf of
// AssetGet/AssetUpload requests, reporting results back rather than
// mutating dispatcher state directly. Grounded on the same
// github.com/JekaMas/workerpool primitive bake.Coordinator uses for its
// single-worker pool, sized here for the ~50-way concurrency spec.md calls
// for.
package transfer

import (
	workerpool "github.com/JekaMas/workerpool"
)

// DefaultSize is the worker count spec.md's concurrency model calls for.
const DefaultSize = 50

// Pool runs blob I/O tasks off the dispatch goroutine.
type Pool struct {
	wp *workerpool.WorkerPool
}

// New returns a Pool with size concurrent workers.
func New(size int) *Pool {
	return &Pool{wp: workerpool.New(size)}
}

// Result carries a task's outcome back to its submitter.
type Result[T any] struct {
	Value T
	Err   error
}

// Submit runs task on the pool and returns a channel that receives its
// single result once complete.
func Submit[T any](p *Pool, task func() (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	p.wp.Submit(func() {
		v, err := task()
		out <- Result[T]{Value: v, Err: err}
	})
	return out
}

// Shutdown drops any queued-but-not-started tasks and lets running tasks
// finish, matching spec.md's "TransferPool is cleared" shutdown behavior.
func (p *Pool) Shutdown() {
	p.wp.Stop()
}
