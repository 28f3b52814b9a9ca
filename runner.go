package attrs

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultRunner returns the default implementation backed by errgroup.Group.
func DefaultRunner(ctx context.Context) Runner {
	return newErrGroupRunner(ctx, runtime.NumCPU())
}

// NewLimitedRunner creates a runner with bounded concurrency.
func NewLimitedRunner(ctx context.Context, maxConcurrency int) Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return newErrGroupRunner(ctx, maxConcurrency)
}

// errGroupRunner is the default implementation backed by errgroup.Group.
type errGroupRunner struct {
	ctx context.Context // derived ctx shared by all tasks
	eg  *errgroup.Group
}

func newErrGroupRunner(parent context.Context, maxConcurrency int) *errGroupRunner {
	eg, ctx := errgroup.WithContext(parent)
	eg.SetLimit(maxConcurrency)
	return &errGroupRunner{ctx: ctx, eg: eg}
}

// Go skips fn once the shared context is cancelled.
func (r *errGroupRunner) Go(fn func() error) {
	r.eg.Go(func() error {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		return fn()
	})
}

func (r *errGroupRunner) Wait() error { return r.eg.Wait() }

// poolTask is the argument handed to the ants worker function.
type poolTask struct {
	fn func() error
	r  *PoolRunner
}

// PoolRunner schedules work on an ants goroutine pool. Wait returns the
// first error; it releases the pool, so a PoolRunner serves one batch.
type PoolRunner struct {
	pool *ants.PoolWithFunc
	wg   sync.WaitGroup

	mu  sync.Mutex
	err error
}

// NewPoolRunner creates a pool runner with size workers.
func NewPoolRunner(size int) (*PoolRunner, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0")
	}
	r := &PoolRunner{}
	pool, err := ants.NewPoolWithFunc(size, func(arg any) {
		task, ok := arg.(*poolTask)
		if !ok {
			panic("pool runner args type error")
		}
		defer task.r.wg.Done()
		task.r.record(task.fn())
	})
	if err != nil {
		return nil, fmt.Errorf("create labeling pool: %w", err)
	}
	r.pool = pool
	return r, nil
}

func (r *PoolRunner) record(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *PoolRunner) Go(fn func() error) {
	r.wg.Add(1)
	if err := r.pool.Invoke(&poolTask{fn: fn, r: r}); err != nil {
		r.wg.Done()
		r.record(fmt.Errorf("submit labeling task: %w", err))
	}
}

func (r *PoolRunner) Wait() error {
	r.wg.Wait()
	r.pool.Release()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
