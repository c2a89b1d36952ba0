package spfresh_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/testutil"
)

func TestSplit_OversizedListsSplit(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(50)
	mc := &spfresh.BasicMetricsCollector{}
	base := rng.ClusteredVectors(300, 8, 6, 0.2)
	idx := newBuilt(t, base,
		spfresh.WithMetricsCollector(mc),
		spfresh.WithParam("Update", "PostingSplitLimit", "50"),
	)

	before, err := idx.Stats()
	require.NoError(t, err)

	extra := rng.ClusteredVectors(1500, 8, 6, 0.2)
	for i := 0; i < len(extra); i += 100 {
		_, err := idx.Add(ctx, extra[i:i+100], nil)
		require.NoError(t, err)
	}

	after, err := idx.Stats()
	require.NoError(t, err)
	assert.Greater(t, after.Heads, before.Heads)
	assert.Equal(t, after.Heads, after.Lists)
	assert.Equal(t, len(base)+len(extra), after.Vectors)
	assert.Positive(t, mc.SplitCount.Load())

	all := append(append([][]float32{}, base...), extra...)
	for i := 0; i < len(all); i += 37 {
		res, err := idx.Search(ctx, all[i], 1, exhaustive)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Zero(t, res[0].Distance, "vector %d", i)
	}
}

func TestSplit_DisabledByDefault(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(51)
	idx := newBuilt(t, rng.UniformVectors(100, 4))

	before, err := idx.Stats()
	require.NoError(t, err)
	_, err = idx.Add(ctx, rng.UniformVectors(500, 4), nil)
	require.NoError(t, err)

	after, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, before.Heads, after.Heads)
	assert.Equal(t, 600, after.Vectors)
}

func TestSplit_IdenticalVectorsStayPut(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(52)
	mc := &spfresh.BasicMetricsCollector{}
	idx := newBuilt(t, rng.UniformVectors(100, 4),
		spfresh.WithMetricsCollector(mc),
		spfresh.WithParam("Update", "PostingSplitLimit", "20"),
	)

	same := make([][]float32, 200)
	for i := range same {
		same[i] = []float32{0.5, 0.5, 0.5, 0.5}
	}
	ids, err := idx.Add(ctx, same, nil)
	require.NoError(t, err)

	// The list cannot separate; the failure is not retried for every add.
	assert.Positive(t, mc.SplitErrors.Load())
	assert.Less(t, mc.SplitErrors.Load(), int64(10))

	res, err := idx.Search(ctx, same[0], 200, exhaustive)
	require.NoError(t, err)
	require.Len(t, res, 200)
	assert.Equal(t, ids, resultIDs(res))
}
