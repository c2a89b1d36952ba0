package spfresh_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/testutil"
)

// exhaustive scans every posting list, turning a search into an exact one.
var exhaustive = spfresh.WithMaxHeads(1 << 20)

func newIndex(t *testing.T, dim int, opts ...spfresh.Option) *spfresh.Index {
	t.Helper()
	idx, err := spfresh.New(dim, append([]spfresh.Option{spfresh.WithThreads(4)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// newBuilt stages vecs, builds and returns the ready index. Ids equal
// positions in vecs.
func newBuilt(t *testing.T, vecs [][]float32, opts ...spfresh.Option) *spfresh.Index {
	t.Helper()
	ctx := context.Background()
	idx := newIndex(t, len(vecs[0]), opts...)
	ids, err := idx.Add(ctx, vecs, nil)
	require.NoError(t, err)
	require.Len(t, ids, len(vecs))
	require.NoError(t, idx.Build(ctx))
	require.True(t, idx.IsReady())
	return idx
}

func resultIDs(res []spfresh.Result) []spfresh.VectorID {
	ids := make([]spfresh.VectorID, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	return ids
}

func toSearchResults(res []spfresh.Result) []testutil.SearchResult {
	out := make([]testutil.SearchResult, len(res))
	for i, r := range res {
		out[i] = testutil.SearchResult{ID: r.ID, Distance: r.Distance}
	}
	return out
}
