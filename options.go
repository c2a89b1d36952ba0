package spfresh

import (
	"log/slog"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/spfresh/distance"
	"github.com/hupe1980/spfresh/internal/headindex"
)

// Variant selects the navigation structure over heads.
type Variant = headindex.Variant

const (
	// VariantTree navigates a balanced k-means tree of centroids.
	VariantTree = headindex.VariantTree
	// VariantFlat scans every head centroid.
	VariantFlat = headindex.VariantFlat
)

// ParseVariant parses "tree" (also "bkt") or "flat" (also "kmeans").
func ParseVariant(s string) (Variant, error) {
	return headindex.ParseVariant(s)
}

// DefaultMaxCheck is the exploration budget used when none is configured.
const DefaultMaxCheck = 8192

type param struct {
	section string
	name    string
	value   string
}

type options struct {
	variant          Variant
	metric           distance.Metric
	threads          int
	maxCheck         int
	params           []param
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures New and Open.
type Option func(*options)

// WithVariant selects the head index variant. The default is VariantTree.
func WithVariant(v Variant) Option {
	return func(o *options) {
		o.variant = v
	}
}

// WithMetric selects the distance metric. The metric is fixed for the
// lifetime of the index: under MetricCosine every stored and query vector is
// L2-normalized. The default is MetricL2 (squared Euclidean).
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithThreads sizes the worker pool that runs Build, corpus assignment and
// snapshot IO. The pool is created once with the index.
// If n <= 0, runtime.GOMAXPROCS(0) is used.
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithMaxCheck sets the exploration budget: the number of centroid distance
// evaluations a traversal may spend before it finalizes its candidate heads.
// It becomes the MaxCheck default for building, adding and searching and can
// be overridden per section with SetBuildParam and SetSearchParam, or per
// query with WithSearchMaxCheck.
func WithMaxCheck(n int) Option {
	return func(o *options) {
		o.maxCheck = n
	}
}

// WithParam presets a tunable, as SetBuildParam would after New.
//
// Example:
//
//	idx, _ := spfresh.New(128,
//	    spfresh.WithParam("SelectHead", "BKTKmeansK", "16"),
//	    spfresh.WithParam("Update", "PostingSplitLimit", "4096"),
//	)
func WithParam(section, name, value string) Option {
	return func(o *options) {
		o.params = append(o.params, param{section: section, name: name, value: value})
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &spfresh.BasicMetricsCollector{}
//	idx, _ := spfresh.New(128, spfresh.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := spfresh.NewJSONLogger(slog.LevelInfo)
//	idx, _ := spfresh.New(128, spfresh.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		variant:          VariantTree,
		metric:           distance.MetricL2,
		maxCheck:         DefaultMaxCheck,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.threads <= 0 {
		o.threads = runtime.GOMAXPROCS(0)
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

type searchOptions struct {
	maxCheck        int
	maxHeads        int
	includeMetadata bool
	filter          *roaring64.Bitmap
}

// SearchOption configures a single Search call.
type SearchOption func(*searchOptions)

// WithSearchMaxCheck overrides the exploration budget for one query.
func WithSearchMaxCheck(n int) SearchOption {
	return func(o *searchOptions) {
		o.maxCheck = n
	}
}

// WithMaxHeads overrides how many posting lists one query scans
// (Search.SearchInternalResultNum).
func WithMaxHeads(n int) SearchOption {
	return func(o *searchOptions) {
		o.maxHeads = n
	}
}

// WithMetadata includes each result's metadata.
func WithMetadata() SearchOption {
	return func(o *searchOptions) {
		o.includeMetadata = true
	}
}

// WithFilter restricts results to the ids in allow. Posting lists are
// still selected by centroid distance, so a narrow filter may return
// fewer than k results.
func WithFilter(allow *roaring64.Bitmap) SearchOption {
	return func(o *searchOptions) {
		o.filter = allow
	}
}
