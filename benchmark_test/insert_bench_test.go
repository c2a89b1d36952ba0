package benchmark_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/testutil"
)

// ============================================================================
// Build and Insert Benchmarks
// ============================================================================

// BenchmarkBuild measures the full head selection and posting assignment.
func BenchmarkBuild(b *testing.B) {
	const dim = dimMedium

	for _, n := range []int{1_000, sizeSmall} {
		b.Run("n="+strconv.Itoa(n), func(b *testing.B) {
			data := MakeData(n, dim)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				idx, err := spfresh.New(dim, spfresh.WithLogger(spfresh.NoopLogger()))
				if err != nil {
					b.Fatal(err)
				}
				if _, err := idx.Add(ctx, data, nil); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()

				if err := idx.Build(ctx); err != nil {
					b.Fatal(err)
				}

				b.StopTimer()
				_ = idx.Close()
				b.StartTimer()
			}

			b.StopTimer()
			b.ReportMetric(float64(n*b.N)/b.Elapsed().Seconds(), "vectors/s")
		})
	}
}

// BenchmarkInsert measures single vector insertion into a built index, with
// and without posting list splits.
func BenchmarkInsert(b *testing.B) {
	const dim = dimMedium

	for _, limit := range []int{0, 64} {
		b.Run("split-limit="+strconv.Itoa(limit), func(b *testing.B) {
			var opts []spfresh.Option
			if limit > 0 {
				opts = append(opts, spfresh.WithParam("Update", "PostingSplitLimit", strconv.Itoa(limit)))
			}
			e := OpenBenchIndex(b, sizeSmall, dim, opts...)
			defer e.Close()

			vecs := testutil.NewRNG(benchSeed+2).UniformVectors(1024, dim)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := e.Add(ctx, vecs[i%len(vecs):i%len(vecs)+1], nil); err != nil {
					b.Fatal(err)
				}
			}

			b.StopTimer()
			b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "inserts/s")
			if st, err := e.Stats(); err == nil {
				b.ReportMetric(float64(st.Heads), "heads")
			}
		})
	}
}

// BenchmarkInsertBatch measures batched insertion throughput.
func BenchmarkInsertBatch(b *testing.B) {
	const dim = dimMedium

	for _, size := range []int{10, 100, 1000} {
		b.Run("batch="+strconv.Itoa(size), func(b *testing.B) {
			e := OpenBenchIndex(b, sizeSmall, dim)
			defer e.Close()

			batch := testutil.NewRNG(benchSeed+3).UniformVectors(size, dim)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := e.Add(ctx, batch, nil); err != nil {
					b.Fatal(err)
				}
			}

			b.StopTimer()
			b.ReportMetric(float64(size*b.N)/b.Elapsed().Seconds(), "vectors/s")
		})
	}
}
