package spfresh_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/testutil"
)

func TestConcurrentAddSearchSave(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(60)
	base := rng.ClusteredVectors(500, 8, 8, 0.2)
	idx := newBuilt(t, base, spfresh.WithParam("Update", "PostingSplitLimit", "40"))

	const writers = 4
	const perWriter = 200
	batches := make([][][]float32, writers)
	for w := range batches {
		batches[w] = rng.ClusteredVectors(perWriter, 8, 8, 0.2)
	}
	queries := rng.UniformVectors(50, 8)
	store := newMemoryStore()

	var (
		mu      sync.Mutex
		added   = make(map[spfresh.VectorID][]float32)
		g, gctx = errgroup.WithContext(ctx)
	)
	for w := range writers {
		g.Go(func() error {
			for i := 0; i < perWriter; i += 10 {
				chunk := batches[w][i : i+10]
				ids, err := idx.Add(gctx, chunk, nil)
				if err != nil {
					return err
				}
				mu.Lock()
				for j, id := range ids {
					added[id] = chunk[j]
				}
				mu.Unlock()
			}
			return nil
		})
	}
	for r := range 4 {
		g.Go(func() error {
			for i := range 100 {
				res, err := idx.Search(gctx, queries[(r+i)%len(queries)], 10)
				if err != nil {
					return err
				}
				for j := 1; j < len(res); j++ {
					if res[j-1].Distance > res[j].Distance {
						t.Errorf("unsorted results")
					}
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for range 3 {
			if err := idx.SaveTo(gctx, store); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	assert.Equal(t, len(base)+writers*perWriter, idx.Len())
	require.Len(t, added, writers*perWriter)

	total := spfresh.VectorID(len(base) + writers*perWriter)
	for id, v := range added {
		require.Less(t, id, total)

		res, err := idx.Search(ctx, v, 1, exhaustive)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Zero(t, res[0].Distance)
	}

	// The last snapshot is consistent.
	loaded, err := spfresh.OpenFrom(ctx, store)
	require.NoError(t, err)
	defer loaded.Close()
	assert.LessOrEqual(t, loaded.Len(), idx.Len())
	assert.GreaterOrEqual(t, loaded.Len(), len(base))
}

func TestConcurrentStagedAdds(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t, 4)

	var g errgroup.Group
	for w := range 8 {
		g.Go(func() error {
			vecs := testutil.NewRNG(int64(70+w)).UniformVectors(50, 4)
			_, err := idx.Add(ctx, vecs, nil)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 400, idx.Len())

	require.NoError(t, idx.Build(ctx))
	st, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, 400, st.Vectors)
	assert.Equal(t, uint64(400), st.NextID)
}

// Records stored before a split stay visible to searches that race it.
func TestConcurrentSplitKeepsStoredRecords(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(61)
	base := rng.UniformVectors(400, 8)
	idx := newBuilt(t, base,
		spfresh.WithVariant(spfresh.VariantFlat),
		spfresh.WithParam("Update", "PostingSplitLimit", "40"),
	)
	before, err := idx.Stats()
	require.NoError(t, err)

	const writers = 2
	const perWriter = 3000
	batches := make([][][]float32, writers)
	for w := range batches {
		batches[w] = rng.UniformVectors(perWriter, 8)
	}

	var (
		done    = make(chan struct{})
		wg      sync.WaitGroup
		g, gctx = errgroup.WithContext(ctx)
	)
	for w := range writers {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for i := range perWriter {
				if _, err := idx.Add(gctx, batches[w][i:i+1], nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	for r := range 4 {
		g.Go(func() error {
			for i := r; ; i += 7 {
				select {
				case <-done:
					return nil
				default:
				}
				want := spfresh.VectorID(i % len(base))
				res, err := idx.Search(gctx, base[want], 1, exhaustive, spfresh.WithSearchMaxCheck(1<<30))
				if err != nil {
					return err
				}
				if len(res) != 1 || res[0].ID != want || res[0].Distance != 0 {
					t.Errorf("stored vector %d not found: %v", want, res)
				}
			}
		})
	}
	require.NoError(t, g.Wait())

	after, err := idx.Stats()
	require.NoError(t, err)
	assert.Greater(t, after.Heads, before.Heads, "lists were split")
	assert.Equal(t, len(base)+writers*perWriter, idx.Len())
}
