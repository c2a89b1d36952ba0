package spfresh

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each Build. vectors is the corpus size and
	// heads the number of selected heads.
	RecordBuild(vectors, heads int, duration time.Duration, err error)

	// RecordAdd is called after each Add batch.
	RecordAdd(count int, duration time.Duration, err error)

	// RecordSearch is called after each search. results is the number of
	// returned neighbors and heads the number of scanned posting lists.
	RecordSearch(k, results, heads int, duration time.Duration, err error)

	// RecordSave is called after each snapshot save with the bytes written.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each snapshot load with the bytes read.
	RecordLoad(bytes int64, duration time.Duration, err error)

	// RecordSplit is called after each posting list split attempt.
	RecordSplit(size int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordAdd(int, time.Duration, error)              {}
func (NoopMetricsCollector) RecordSearch(int, int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error)           {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error)           {}
func (NoopMetricsCollector) RecordSplit(int, time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	AddCount         atomic.Int64
	AddVectors       atomic.Int64
	AddErrors        atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	SearchHeads      atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveBytes        atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadBytes        atomic.Int64
	SplitCount       atomic.Int64
	SplitErrors      atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_, _ int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(count int, _ time.Duration, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
		return
	}
	b.AddVectors.Add(int64(count))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_, _, heads int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.SearchHeads.Add(int64(heads))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(bytes)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadBytes.Add(bytes)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordSplit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSplit(_ int, _ time.Duration, err error) {
	b.SplitCount.Add(1)
	if err != nil {
		b.SplitErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:     b.BuildCount.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		BuildAvgNanos:  avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		AddCount:       b.AddCount.Load(),
		AddVectors:     b.AddVectors.Load(),
		AddErrors:      b.AddErrors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SearchAvgHeads: avg(b.SearchHeads.Load(), b.SearchCount.Load()),
		SaveCount:      b.SaveCount.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		SaveBytes:      b.SaveBytes.Load(),
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		LoadBytes:      b.LoadBytes.Load(),
		SplitCount:     b.SplitCount.Load(),
		SplitErrors:    b.SplitErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount     int64
	BuildErrors    int64
	BuildAvgNanos  int64
	AddCount       int64
	AddVectors     int64
	AddErrors      int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	SearchAvgHeads int64
	SaveCount      int64
	SaveErrors     int64
	SaveBytes      int64
	LoadCount      int64
	LoadErrors     int64
	LoadBytes      int64
	SplitCount     int64
	SplitErrors    int64
}
