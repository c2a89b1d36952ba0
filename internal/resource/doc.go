// Package resource implements the per-index worker pool and IO governance.
//
// A Controller is created once per index and sized at creation time. It
// provides:
//
//   - Workers: a weighted semaphore bounding how many goroutines the
//     parallel phases (clustering, corpus assignment) run at once
//   - IO: a token bucket limiting snapshot read/write throughput
//
// # Parallel Loops
//
//	c := resource.NewController(resource.Config{Workers: 8})
//	err := c.ParallelRange(ctx, len(vectors), func(ctx context.Context, lo, hi int) error {
//	    for i := lo; i < hi; i++ { ... }
//	    return nil
//	})
//
// The first error cancels the remaining work. A panic inside a worker is
// recovered and reported as ErrWorkerPanic.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully: loops run sequentially on
// the calling goroutine and IO is unlimited.
package resource
