package spfresh

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/spfresh/distance"
	"github.com/hupe1980/spfresh/internal/headindex"
	"github.com/hupe1980/spfresh/internal/params"
	"github.com/hupe1980/spfresh/internal/searcher"
)

// Result is a single search hit.
type Result struct {
	ID       VectorID
	Distance float32
	// Metadata is set only when the search used WithMetadata.
	Metadata []byte
}

// Search returns up to k stored vectors nearest to query, ordered by
// ascending distance with ties broken by the lower id.
//
// The head index is traversed best first until the exploration budget
// (MaxCheck) is spent, then the posting lists of the selected heads
// (at most Search.SearchInternalResultNum) are scanned exactly. The
// distance is squared Euclidean under MetricL2 and 1 - cosine similarity
// under MetricCosine.
//
// Search returns ErrNotReady before a successful Build or Load. The context
// is used for logging only: a traversal in progress is not canceled.
func (x *Index) Search(ctx context.Context, query []float32, k int, opts ...SearchOption) (res []Result, err error) {
	if x == nil {
		return nil, ErrInvalidParameter
	}
	start := time.Now()
	var heads int
	defer func() {
		x.metrics.RecordSearch(k, len(res), heads, time.Since(start), err)
		x.logger.LogSearch(ctx, k, len(res), heads, err)
	}()
	defer recoverError(&err)

	res, heads, err = x.search(query, k, opts)
	if err != nil {
		return nil, translateError(err)
	}
	return res, nil
}

func (x *Index) search(query []float32, k int, optFns []SearchOption) ([]Result, int, error) {
	if k <= 0 {
		return nil, 0, invalidParam("k must be positive, got %d", k)
	}
	var o searchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	x.phase.RLock()
	defer x.phase.RUnlock()

	switch x.State() {
	case StateClosed:
		return nil, 0, ErrClosed
	case StateReady:
	default:
		return nil, 0, ErrNotReady
	}

	q, err := x.prepareQuery(query)
	if err != nil {
		return nil, 0, err
	}

	maxCheck := o.maxCheck
	if maxCheck <= 0 {
		maxCheck = x.maxCheck(params.Search)
	}
	maxHeads := o.maxHeads
	if maxHeads <= 0 {
		maxHeads = max(x.params.Int(params.Search, params.SearchInternalResultNum), 1)
	}

	s := searcher.Get()
	defer searcher.Put(s)

	var meta map[uint64][]byte
	if o.includeMetadata {
		meta = make(map[uint64][]byte, k)
	}
	var cands []headindex.Candidate
	for attempt := 0; ; attempt++ {
		if attempt == maxRouteAttempts {
			return nil, 0, fmt.Errorf("%w: head index changed %d times", ErrSearchFailed, maxRouteAttempts)
		}
		ix := x.head.Load()
		if cands, err = ix.Search(q, maxCheck, maxHeads, s); err != nil {
			return nil, 0, err
		}
		if x.scan(q, k, cands, &o, s, meta) {
			break
		}
		// A selected list was retired by a split. Its records reach the
		// new heads before the split releases splitMu.
		x.awaitSplit()
		clear(meta)
	}

	items := s.Results.Sorted()
	out := make([]Result, len(items))
	for i, it := range items {
		out[i] = Result{ID: it.Node, Distance: it.Distance}
		if meta != nil {
			out[i].Metadata = slices.Clone(meta[it.Node])
		}
	}
	return out, len(cands), nil
}

// scan collects the k nearest records of the candidate lists into
// s.Results. It reports false when a candidate list was retired.
func (x *Index) scan(q []float32, k int, cands []headindex.Candidate, o *searchOptions, s *searcher.Searcher, meta map[uint64][]byte) bool {
	s.Results.Reset()
	for _, c := range cands {
		v, ok := x.postings.View(c.Head)
		if !ok {
			return false
		}
		for i, id := range v.IDs {
			if o.filter != nil && !o.filter.Contains(id) {
				continue
			}
			item := searcher.PriorityQueueItem{Node: id, Distance: x.distFn(q, v.Vector(i))}
			if s.Results.PushItemBounded(item, k) && meta != nil {
				meta[id] = v.Metadata[i]
			}
		}
	}
	return true
}

// prepareQuery validates the query dimension and normalizes it under the
// cosine metric. A zero query is searched as is.
func (x *Index) prepareQuery(query []float32) ([]float32, error) {
	if len(query) != x.dim {
		return nil, &ErrDimensionMismatch{Expected: x.dim, Actual: len(query)}
	}
	if !distance.IsFinite(query) {
		return nil, invalidParam("query has a NaN or infinite component")
	}
	if !x.metric.Normalized() {
		return query, nil
	}
	if q, ok := distance.NormalizeL2Copy(query); ok {
		return q, nil
	}
	return query, nil
}
