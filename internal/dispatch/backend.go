// Package dispatch fans independent segment encodes out over a compute
// backend and gathers them behind a full barrier.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrDispatch reports that one or more segments did not complete. The
// whole encode is abandoned; there is no partial result.
var ErrDispatch = errors.New("qoi: segment dispatch failed")

// Backend runs n independent tasks, indexed 0..n-1, and returns only after
// every started task has finished. Tasks never wait on each other, so any
// order and any degree of parallelism is valid. Run returns the first task
// error, or the context error if ctx is cancelled before all tasks ran.
type Backend interface {
	Run(ctx context.Context, n int, task func(i int) error) error
}

// parallelism returns the number of workers b uses for n tasks, or 0 when
// the backend does not say.
func parallelism(b Backend, n int) int {
	if p, ok := b.(interface{ Parallelism(n int) int }); ok {
		return p.Parallelism(n)
	}
	return 0
}

// TaskError identifies the task that failed.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("qoi: segment %d: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// runTask converts a panicking task into an error so one bad segment
// cannot take down the process from a worker goroutine.
func runTask(task func(int) error, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Index: i, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := task(i); err != nil {
		return &TaskError{Index: i, Err: err}
	}
	return nil
}

// Goroutines runs tasks on a fixed set of worker goroutines. Workers claim
// task indices from a shared atomic counter, so a slow segment never holds
// up the others.
type Goroutines struct {
	// Workers is the number of worker goroutines. Values <= 0 use
	// GOMAXPROCS. The count is capped at the number of tasks.
	Workers int
}

// Parallelism returns the number of workers used for n tasks.
func (g Goroutines) Parallelism(n int) int {
	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

func (g Goroutines) String() string {
	return fmt.Sprintf("goroutines(%d)", g.Workers)
}

// Run implements Backend.
func (g Goroutines) Run(ctx context.Context, n int, task func(i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers := g.Parallelism(n)

	var (
		next     atomic.Int64
		failed   atomic.Bool
		errOnce  sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		failed.Store(true)
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for !failed.Load() {
				if err := ctx.Err(); err != nil {
					fail(err)
					return
				}
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				if err := runTask(task, i); err != nil {
					fail(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// Serial runs tasks one after another on the calling goroutine.
type Serial struct{}

func (Serial) String() string { return "serial" }

// Parallelism is always 1.
func (Serial) Parallelism(int) int { return 1 }

// Run implements Backend.
func (Serial) Run(ctx context.Context, n int, task func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runTask(task, i); err != nil {
			return err
		}
	}
	return ctx.Err()
}
