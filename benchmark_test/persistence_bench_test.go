package benchmark_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/blobstore"
)

// ============================================================================
// Persistence Benchmarks
// ============================================================================

// BenchmarkSave measures snapshot writes per compression codec.
func BenchmarkSave(b *testing.B) {
	const dim = dimMedium

	for _, codec := range []string{"none", "lz4", "zstd"} {
		b.Run(codec, func(b *testing.B) {
			e := OpenBenchIndex(b, sizeSmall, dim, spfresh.WithParam("Persist", "Compression", codec))
			defer e.Close()

			ctx := context.Background()
			store := blobstore.NewLocalStore(b.TempDir())

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if err := e.SaveTo(ctx, store); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkOpen measures loading and verifying a snapshot.
func BenchmarkOpen(b *testing.B) {
	const dim = dimMedium

	for _, n := range []int{1_000, sizeSmall} {
		b.Run("n="+strconv.Itoa(n), func(b *testing.B) {
			e := OpenBenchIndex(b, n, dim)
			dir := b.TempDir()
			ctx := context.Background()
			if err := e.Save(ctx, dir); err != nil {
				b.Fatal(err)
			}
			_ = e.Close()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				idx, err := spfresh.Open(ctx, dir, spfresh.WithLogger(spfresh.NoopLogger()))
				if err != nil {
					b.Fatal(err)
				}
				_ = idx.Close()
			}
		})
	}
}
