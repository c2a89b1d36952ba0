package spfresh

import (
	"strconv"

	"github.com/hupe1980/spfresh/distance"
	"github.com/hupe1980/spfresh/internal/params"
)

// Builder is an immutable fluent builder for creating an Index.
// Each method returns a new builder with the updated configuration.
//
// Example:
//
//	idx, err := spfresh.Tree(128).
//	    Cosine().
//	    KmeansK(16).
//	    LeafSize(32).
//	    Threads(8).
//	    MaxCheck(2048).
//	    Build()
type Builder struct {
	dimension int
	opts      []Option
}

// Tree creates a builder for an index navigated by balanced k-means trees.
func Tree(dimension int) Builder {
	return Builder{dimension: dimension}.with(WithVariant(VariantTree))
}

// Flat creates a builder for an index that scans every head centroid.
func Flat(dimension int) Builder {
	return Builder{dimension: dimension}.with(WithVariant(VariantFlat))
}

func (b Builder) with(opt Option) Builder {
	opts := make([]Option, len(b.opts), len(b.opts)+1)
	copy(opts, b.opts)
	b.opts = append(opts, opt)
	return b
}

func (b Builder) param(section params.Section, name, value string) Builder {
	return b.with(WithParam(string(section), name, value))
}

// SquaredL2 sets the distance metric to squared Euclidean distance.
func (b Builder) SquaredL2() Builder {
	return b.with(WithMetric(distance.MetricL2))
}

// Cosine sets the distance metric to cosine distance over normalized vectors.
func (b Builder) Cosine() Builder {
	return b.with(WithMetric(distance.MetricCosine))
}

// Threads sizes the worker pool.
func (b Builder) Threads(n int) Builder {
	return b.with(WithThreads(n))
}

// MaxCheck sets the exploration budget.
func (b Builder) MaxCheck(n int) Builder {
	return b.with(WithMaxCheck(n))
}

// TreeNumber sets the number of navigation trees.
func (b Builder) TreeNumber(n int) Builder {
	return b.param(params.SelectHead, params.TreeNumber, strconv.Itoa(n))
}

// KmeansK sets the branching factor of each k-means split.
func (b Builder) KmeansK(k int) Builder {
	return b.param(params.SelectHead, params.BKTKmeansK, strconv.Itoa(k))
}

// LeafSize sets the maximum number of sample points under one head.
func (b Builder) LeafSize(n int) Builder {
	return b.param(params.SelectHead, params.BKTLeafSize, strconv.Itoa(n))
}

// Samples caps the number of vectors used for head selection.
func (b Builder) Samples(n int) Builder {
	return b.param(params.SelectHead, params.SamplesNumber, strconv.Itoa(n))
}

// SampleRatio sets the proportion of the corpus used for head selection.
func (b Builder) SampleRatio(r float64) Builder {
	return b.param(params.SelectHead, params.Ratio, strconv.FormatFloat(r, 'g', -1, 64))
}

// Seed sets the clustering seed.
func (b Builder) Seed(seed int64) Builder {
	return b.param(params.SelectHead, params.Seed, strconv.FormatInt(seed, 10))
}

// SearchHeads sets how many posting lists one query scans.
func (b Builder) SearchHeads(n int) Builder {
	return b.param(params.Search, params.SearchInternalResultNum, strconv.Itoa(n))
}

// SplitLimit enables splitting posting lists that grow beyond n records.
func (b Builder) SplitLimit(n int) Builder {
	return b.param(params.Update, params.PostingSplitLimit, strconv.Itoa(n))
}

// Compression selects the snapshot compression: "none", "lz4" or "zstd".
func (b Builder) Compression(name string) Builder {
	return b.param(params.Persist, params.Compression, name)
}

// Logger sets the logger.
func (b Builder) Logger(l *Logger) Builder {
	return b.with(WithLogger(l))
}

// Metrics sets the metrics collector.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	return b.with(WithMetricsCollector(mc))
}

// Options appends raw options.
func (b Builder) Options(opts ...Option) Builder {
	for _, o := range opts {
		b = b.with(o)
	}
	return b
}

// Build creates the index. It does not build heads; call Index.Build after
// adding vectors.
func (b Builder) Build() (*Index, error) {
	return New(b.dimension, b.opts...)
}
