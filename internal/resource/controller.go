package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrWorkerPanic is returned when a parallel task panics.
var ErrWorkerPanic = errors.New("resource: worker panic")

// Config holds resource limits.
type Config struct {
	// Workers is the maximum number of concurrently running tasks.
	// If <= 0, defaults to runtime.GOMAXPROCS(0).
	Workers int

	// IOLimitBytesPerSec is the maximum snapshot IO throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller owns the worker pool and IO limiter of one index.
type Controller struct {
	workers int
	sem     *semaphore.Weighted

	ioLimiter atomic.Pointer[rate.Limiter]
	ioBytes   atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	c := &Controller{
		workers: cfg.Workers,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
	}
	c.SetIOLimit(cfg.IOLimitBytesPerSec)
	return c
}

// Workers returns the pool size.
func (c *Controller) Workers() int {
	if c == nil {
		return 1
	}
	return c.workers
}

// ForEach runs fn for every i in [0, n) on the pool.
func (c *Controller) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	return c.ParallelRange(ctx, n, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParallelRange splits [0, n) into contiguous chunks and runs fn for each
// chunk on the pool. It blocks until every chunk finished or one failed.
func (c *Controller) ParallelRange(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if c == nil || c.workers == 1 || n == 1 {
		return protect(func() error { return fn(ctx, 0, n) })
	}

	chunk := max(1, (n+c.workers*4-1)/(c.workers*4))

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		if err := c.sem.Acquire(gctx, 1); err != nil {
			break
		}
		hi := min(lo+chunk, n)
		g.Go(func() error {
			defer c.sem.Release(1)
			if err := gctx.Err(); err != nil {
				return err
			}
			return protect(func() error { return fn(gctx, lo, hi) })
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()
	return fn()
}

// SetIOLimit replaces the IO limit. 0 disables limiting.
func (c *Controller) SetIOLimit(bytesPerSec int64) {
	if c == nil {
		return
	}
	if bytesPerSec <= 0 {
		c.ioLimiter.Store(nil)
		return
	}
	c.ioLimiter.Store(rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)))
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the bucket are split into bucket-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	c.ioBytes.Add(int64(bytes))
	lim := c.ioLimiter.Load()
	if lim == nil {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, lim.Burst())
		if err := lim.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// IOBytes returns the total bytes accounted through AcquireIO.
func (c *Controller) IOBytes() int64 {
	if c == nil {
		return 0
	}
	return c.ioBytes.Load()
}
