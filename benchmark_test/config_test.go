package benchmark_test

import (
	"context"
	"testing"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/distance"
	"github.com/hupe1980/spfresh/testutil"
)

// ============================================================================
// Benchmark Configuration
// ============================================================================

const (
	dimSmall  = 64
	dimMedium = 128 // SIFT
	dimLarge  = 768
)

const (
	sizeSmall  = 5_000
	sizeMedium = 20_000
	sizeLarge  = 50_000
)

// Seed for deterministic benchmarks.
const benchSeed = 42

// ============================================================================
// Benchmark Helpers
// ============================================================================

// BenchIndex wraps an index together with the vectors it was built from.
type BenchIndex struct {
	*spfresh.Index
	data [][]float32
}

// OpenBenchIndex builds a tree index over n clustered vectors.
func OpenBenchIndex(b *testing.B, n, dim int, opts ...spfresh.Option) *BenchIndex {
	b.Helper()
	idx, err := spfresh.New(dim, append([]spfresh.Option{spfresh.WithLogger(spfresh.NoopLogger())}, opts...)...)
	if err != nil {
		b.Fatalf("failed to create index: %v", err)
	}
	data := MakeData(n, dim)

	ctx := context.Background()
	const batchSize = 1000
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		if _, err := idx.Add(ctx, data[start:end], nil); err != nil {
			b.Fatalf("add failed: %v", err)
		}
	}
	if err := idx.Build(ctx); err != nil {
		b.Fatalf("build failed: %v", err)
	}
	return &BenchIndex{Index: idx, data: data}
}

// MakeData generates clustered vectors so the head index has structure to find.
func MakeData(n, dim int) [][]float32 {
	return testutil.NewRNG(benchSeed).ClusteredVectors(n, dim, max(n/200, 4), 0.05)
}

// MakeQueries generates queries from a seed distinct from the data.
func MakeQueries(n, dim int) [][]float32 {
	return testutil.NewRNG(benchSeed+1).ClusteredVectors(n, dim, max(n/10, 4), 0.05)
}

// WarmupSearch runs each query once before timing starts.
func (e *BenchIndex) WarmupSearch(b *testing.B, queries [][]float32, k int) {
	b.Helper()
	for _, q := range queries {
		if _, err := e.Search(context.Background(), q, k); err != nil {
			b.Fatalf("warmup failed: %v", err)
		}
	}
}

// Recall computes recall@k of res against a brute force scan of the data.
func (e *BenchIndex) Recall(q []float32, res []spfresh.Result, k int) float64 {
	truth := testutil.ExactTopK(q, e.data, k, distance.SquaredL2)
	approx := make([]testutil.SearchResult, len(res))
	for i, r := range res {
		approx[i] = testutil.SearchResult{ID: r.ID, Distance: r.Distance}
	}
	return testutil.ComputeRecall(truth, approx)
}
