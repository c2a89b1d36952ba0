package spfresh

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/hupe1980/spfresh/internal/kmeans"
	"github.com/hupe1980/spfresh/internal/params"
	"github.com/hupe1980/spfresh/internal/posting"
)

var errDegenerateSplit = errors.New("posting list does not separate into two clusters")

// maybeSplit splits head's posting list once it holds more than limit
// records. Split failures are logged, never returned: the triggering
// records are already stored.
func (x *Index) maybeSplit(ctx context.Context, head uint32, limit int) {
	x.splitMu.Lock()
	defer x.splitMu.Unlock()

	l, ok := x.postings.Get(head)
	if !ok || l.Retired() {
		return
	}
	size := l.Len()
	if size <= limit {
		return
	}
	// Retry a list that failed to split only after it doubled.
	if last, ok := x.splitSkip[head]; ok && size < 2*last {
		return
	}

	start := time.Now()
	into, err := x.split(ctx, head, l)
	x.metrics.RecordSplit(size, time.Since(start), err)
	x.logger.LogSplit(ctx, head, size, into, err)
	if err != nil {
		x.splitSkip[head] = size
		return
	}
	delete(x.splitSkip, head)
}

// split replaces head by two new heads. The caller holds splitMu, so the
// loaded head index is the latest one.
//
// The new lists are filled from a snapshot of the old list. The old list is
// then retired, records that reached it in between are moved over, and only
// then is the new head index published. Readers and appenders that meet the
// retired list wait for splitMu and retry against the published index.
func (x *Index) split(ctx context.Context, head uint32, l *posting.List) ([2]uint32, error) {
	ix := x.head.Load()
	v := l.View()

	seed := int64(x.params.Int(params.SelectHead, params.Seed)) + int64(head)
	iters := x.params.Int(params.Update, params.SplitKmeansIterations)
	c, err := kmeans.TrainKMeans(ctx, v.Vectors, x.dim, 2, iters, rand.New(rand.NewSource(seed)))
	if err != nil {
		return [2]uint32{}, err
	}
	if c.K < 2 || c.NonEmpty() < 2 {
		return [2]uint32{}, errDegenerateSplit
	}

	next, ids, err := ix.Split(head, c.Centroid(0), c.Centroid(1))
	if err != nil {
		return [2]uint32{}, err
	}
	var lists [2]*posting.List
	discard := func() {
		for i, id := range ids {
			if lists[i] != nil {
				_, _ = x.postings.Retire(id)
			}
		}
	}
	for i, id := range ids {
		if lists[i], err = x.postings.Create(id); err != nil {
			discard()
			return [2]uint32{}, fmt.Errorf("create list %d: %w", id, err)
		}
	}
	for i := range v.Len() {
		if _, err := lists[c.Assignments[i]].Append(v.Record(i)); err != nil {
			discard()
			return [2]uint32{}, err
		}
	}

	final, err := x.postings.Retire(head)
	if err != nil {
		discard()
		return [2]uint32{}, fmt.Errorf("retire list %d: %w", head, err)
	}
	for i := v.Len(); i < final.Len(); i++ {
		rec := final.Record(i)
		j, _ := kmeans.Nearest(rec.Vector, c.Centroids, x.dim)
		// Unpublished lists of the same dimension accept every append.
		_, _ = lists[j].Append(rec)
	}

	x.head.Store(next)
	return ids, nil
}

// awaitSplit blocks until no split is in progress.
func (x *Index) awaitSplit() {
	x.splitMu.Lock()
	x.splitMu.Unlock() //nolint:staticcheck // used as a barrier
}
