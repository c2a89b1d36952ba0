package benchmark_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/hupe1980/spfresh"
)

// ============================================================================
// Search Benchmarks
// ============================================================================

// BenchmarkSearchDim measures search latency and recall across dimensions.
func BenchmarkSearchDim(b *testing.B) {
	dims := []int{dimSmall, dimMedium, dimLarge}
	const k = 10

	for _, dim := range dims {
		b.Run("dim="+strconv.Itoa(dim), func(b *testing.B) {
			e := OpenBenchIndex(b, sizeSmall, dim)
			defer e.Close()

			queries := MakeQueries(100, dim)
			e.WarmupSearch(b, queries, k)
			benchmarkSearch(b, e, queries, k, 50)
		})
	}
}

// BenchmarkSearchScaling measures search latency as the corpus grows.
func BenchmarkSearchScaling(b *testing.B) {
	sizes := []int{1_000, sizeSmall, sizeMedium}
	const dim = dimMedium
	const k = 10

	for _, n := range sizes {
		b.Run("n="+strconv.Itoa(n), func(b *testing.B) {
			e := OpenBenchIndex(b, n, dim)
			defer e.Close()

			queries := MakeQueries(100, dim)
			e.WarmupSearch(b, queries, k)
			benchmarkSearch(b, e, queries, k, 20)
		})
	}
}

// BenchmarkSearchMaxHeads shows the recall/latency trade-off of the number of
// posting lists scanned per query.
func BenchmarkSearchMaxHeads(b *testing.B) {
	const dim = dimMedium
	const k = 10

	e := OpenBenchIndex(b, sizeMedium, dim)
	defer e.Close()
	queries := MakeQueries(100, dim)

	for _, heads := range []int{8, 32, 64, 128} {
		b.Run("heads="+strconv.Itoa(heads), func(b *testing.B) {
			benchmarkSearch(b, e, queries, k, 50, spfresh.WithMaxHeads(heads))
		})
	}
}

// BenchmarkSearchVariant compares the tree and flat head indexes.
func BenchmarkSearchVariant(b *testing.B) {
	const dim = dimMedium
	const k = 10

	for _, v := range []spfresh.Variant{spfresh.VariantTree, spfresh.VariantFlat} {
		b.Run(v.String(), func(b *testing.B) {
			e := OpenBenchIndex(b, sizeSmall, dim, spfresh.WithVariant(v))
			defer e.Close()

			queries := MakeQueries(100, dim)
			e.WarmupSearch(b, queries, k)
			benchmarkSearch(b, e, queries, k, 50)
		})
	}
}

// BenchmarkConcurrentSearch measures search throughput under concurrent load.
func BenchmarkConcurrentSearch(b *testing.B) {
	const dim = dimMedium
	const k = 10

	e := OpenBenchIndex(b, sizeMedium, dim)
	defer e.Close()
	queries := MakeQueries(100, dim)
	e.WarmupSearch(b, queries, k)

	for _, p := range []int{1, 2, 4, 8} {
		b.Run("goroutines="+strconv.Itoa(p), func(b *testing.B) {
			ctx := context.Background()
			b.SetParallelism(p)
			b.ReportAllocs()
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					if _, err := e.Search(ctx, queries[i%len(queries)], k); err != nil {
						b.Error(err)
						return
					}
					i++
				}
			})

			b.StopTimer()
			b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "qps")
		})
	}
}

func benchmarkSearch(b *testing.B, e *BenchIndex, queries [][]float32, k, recallSamples int, opts ...spfresh.SearchOption) {
	ctx := context.Background()
	var totalRecall float64

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		q := queries[i%len(queries)]
		results, err := e.Search(ctx, q, k, opts...)
		if err != nil {
			b.Fatal(err)
		}

		// Compute recall for a subset to avoid slowing the benchmark
		if i < recallSamples {
			b.StopTimer()
			totalRecall += e.Recall(q, results, k)
			b.StartTimer()
		}
	}

	b.StopTimer()
	b.ReportMetric(totalRecall/float64(min(recallSamples, b.N)), "recall@10")
	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "qps")
}
