// Package prommetrics exports spfresh index metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/spfresh"
)

var _ spfresh.MetricsCollector = (*Collector)(nil)

// Collector implements spfresh.MetricsCollector on Prometheus metrics.
type Collector struct {
	opLatency    *prometheus.HistogramVec
	ops          *prometheus.CounterVec
	vectors      *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	heads        prometheus.Gauge
	searchHeads  prometheus.Histogram
	searchResult prometheus.Histogram
	splitSize    prometheus.Histogram
}

// New creates a collector and registers it with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "spfresh"
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of index operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total index operations",
		}, []string{"op", "status"}),
		vectors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectors_total",
			Help:      "Vectors processed by build and add",
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes_total",
			Help:      "Snapshot bytes written and read",
		}, []string{"op"}),
		heads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heads",
			Help:      "Heads selected by the last successful build",
		}),
		searchHeads: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_scanned_lists",
			Help:      "Posting lists scanned per search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		searchResult: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Neighbors returned per search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		splitSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "split_list_size",
			Help:      "Posting list length at split",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
		}),
	}
	for _, m := range []prometheus.Collector{
		c.opLatency, c.ops, c.vectors, c.bytes, c.heads, c.searchHeads, c.searchResult, c.splitSize,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, namespace string) *Collector {
	c, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

func (c *Collector) RecordBuild(vectors, heads int, d time.Duration, err error) {
	c.observe("build", d, err)
	if err == nil {
		c.vectors.WithLabelValues("build").Add(float64(vectors))
		c.heads.Set(float64(heads))
	}
}

func (c *Collector) RecordAdd(count int, d time.Duration, err error) {
	c.observe("add", d, err)
	if err == nil {
		c.vectors.WithLabelValues("add").Add(float64(count))
	}
}

func (c *Collector) RecordSearch(_, results, heads int, d time.Duration, err error) {
	c.observe("search", d, err)
	if err == nil {
		c.searchHeads.Observe(float64(heads))
		c.searchResult.Observe(float64(results))
	}
}

func (c *Collector) RecordSave(bytes int64, d time.Duration, err error) {
	c.observe("save", d, err)
	c.bytes.WithLabelValues("save").Add(float64(bytes))
}

func (c *Collector) RecordLoad(bytes int64, d time.Duration, err error) {
	c.observe("load", d, err)
	c.bytes.WithLabelValues("load").Add(float64(bytes))
}

func (c *Collector) RecordSplit(size int, d time.Duration, err error) {
	c.observe("split", d, err)
	c.splitSize.Observe(float64(size))
}
