package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_ParallelRangeCoversAll(t *testing.T) {
	c := NewController(Config{Workers: 4})
	assert.Equal(t, 4, c.Workers())

	const n = 1003
	seen := make([]int32, n)
	err := c.ParallelRange(context.Background(), n, func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for i, v := range seen {
		require.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestController_BoundsConcurrency(t *testing.T) {
	c := NewController(Config{Workers: 2})

	var running, peak atomic.Int32
	err := c.ForEach(context.Background(), 64, func(_ context.Context, _ int) error {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestController_FirstErrorWins(t *testing.T) {
	c := NewController(Config{Workers: 4})
	boom := errors.New("boom")

	err := c.ForEach(context.Background(), 100, func(_ context.Context, i int) error {
		if i == 17 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestController_RecoversPanics(t *testing.T) {
	for _, workers := range []int{1, 4} {
		c := NewController(Config{Workers: workers})
		err := c.ForEach(context.Background(), 10, func(_ context.Context, i int) error {
			if i == 3 {
				panic("bad partition")
			}
			return nil
		})
		assert.ErrorIs(t, err, ErrWorkerPanic)
	}
}

func TestController_Cancellation(t *testing.T) {
	c := NewController(Config{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ForEach(ctx, 100, func(_ context.Context, _ int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestController_NilIsSequential(t *testing.T) {
	var c *Controller
	assert.Equal(t, 1, c.Workers())

	var mu sync.Mutex
	var order []int
	err := c.ForEach(context.Background(), 5, func(_ context.Context, i int) error {
		mu.Lock()
		order = append(order, i)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<30))
	assert.Equal(t, int64(0), c.IOBytes())
}

func TestController_IO(t *testing.T) {
	ctx := context.Background()

	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	require.NoError(t, c.AcquireIO(ctx, 100))
	assert.Equal(t, int64(100), c.IOBytes())

	// Unlimited
	c2 := NewController(Config{})
	require.NoError(t, c2.AcquireIO(ctx, 1_000_000))

	// A request larger than the bucket must still complete.
	c3 := NewController(Config{IOLimitBytesPerSec: 1000})
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, c3.AcquireIO(tctx, 1500))

	// A cancelled context fails once tokens run out.
	cctx, ccancel := context.WithCancel(ctx)
	ccancel()
	assert.Error(t, c3.AcquireIO(cctx, 5000))
}
