package spfresh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/spfresh/internal/params"
	"github.com/hupe1980/spfresh/internal/posting"
	"github.com/hupe1980/spfresh/internal/searcher"
)

// maxRouteAttempts bounds how often one insert re-routes after racing a split.
const maxRouteAttempts = 16

// Add inserts a batch of vectors with optional per-vector metadata and
// returns their ids. metadata must be nil or have one entry per vector.
//
// The batch is validated as a whole first; any invalid vector rejects the
// call without changing the index. Before the first Build the batch is staged
// as build input. On a ready index each vector is routed to its nearest head
// and appended to that head's posting list, visible to searches as soon as
// the append completes. If an append fails the call fails, but records
// appended before the failure stay in place.
func (x *Index) Add(ctx context.Context, vectors [][]float32, metadata [][]byte) (ids []VectorID, err error) {
	if x == nil {
		return nil, ErrInvalidParameter
	}
	start := time.Now()
	staged := false
	defer func() {
		x.metrics.RecordAdd(len(vectors), time.Since(start), err)
		x.logger.LogAdd(ctx, len(vectors), staged, err)
	}()
	defer recoverError(&err)

	ids, staged, err = x.add(ctx, vectors, metadata)
	if err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

func (x *Index) add(ctx context.Context, vectors [][]float32, metadata [][]byte) ([]VectorID, bool, error) {
	if len(vectors) == 0 {
		return nil, false, invalidParam("empty batch")
	}
	if metadata != nil && len(metadata) != len(vectors) {
		return nil, false, invalidParam("metadata length %d does not match batch length %d", len(metadata), len(vectors))
	}

	x.phase.RLock()
	defer x.phase.RUnlock()

	state := x.State()
	switch state {
	case StateClosed:
		return nil, false, ErrClosed
	case StateFailed:
		return nil, false, fmt.Errorf("%w: index is in failed state", ErrBuildFailed)
	}

	recs := make([]posting.Record, len(vectors))
	for i, v := range vectors {
		vec, err := x.prepare(v)
		if err != nil {
			return nil, false, fmt.Errorf("vector %d: %w", i, err)
		}
		recs[i].Vector = vec
		if metadata != nil && metadata[i] != nil {
			recs[i].Metadata = slices.Clone(metadata[i])
		}
	}

	if state != StateReady {
		return x.stage(recs), true, nil
	}

	x.addGate.RLock()
	defer x.addGate.RUnlock()

	ids := x.reserveIDs(len(recs))
	maxCheck := x.maxCheck(params.BuildHead)
	limit := x.params.Int(params.Update, params.PostingSplitLimit)

	s := searcher.Get()
	defer searcher.Put(s)
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		recs[i].ID = ids[i]
		head, size, err := x.insert(recs[i], maxCheck, s)
		if err != nil {
			return nil, false, fmt.Errorf("insert %d: %w", ids[i], err)
		}
		if limit > 0 && size > limit {
			x.maybeSplit(ctx, head, limit)
		}
	}
	return ids, false, nil
}

func (x *Index) reserveIDs(n int) []VectorID {
	last := x.nextID.Add(uint64(n))
	ids := make([]VectorID, n)
	for i := range ids {
		ids[i] = last - uint64(n) + uint64(i)
	}
	return ids
}

// stage holds records until the first Build.
func (x *Index) stage(recs []posting.Record) []VectorID {
	x.stageMu.Lock()
	defer x.stageMu.Unlock()
	ids := x.reserveIDs(len(recs))
	for i := range recs {
		recs[i].ID = ids[i]
	}
	x.staged = append(x.staged, recs...)
	return ids
}

// insert routes rec to its nearest head and appends it. It returns the head
// and the list length after the append.
func (x *Index) insert(rec posting.Record, maxCheck int, s *searcher.Searcher) (uint32, int, error) {
	for range maxRouteAttempts {
		ix := x.head.Load()
		head, err := ix.Route(rec.Vector, maxCheck, s)
		if err != nil {
			return 0, 0, err
		}
		pos, err := x.postings.Append(head, rec)
		switch {
		case err == nil:
			return head, pos + 1, nil
		case errors.Is(err, posting.ErrRetired), errors.Is(err, posting.ErrNoList):
			// The head was split after we loaded ix; the replacement is
			// published once the split releases splitMu.
			x.awaitSplit()
			continue
		default:
			return 0, 0, err
		}
	}
	return 0, 0, fmt.Errorf("route: head index changed %d times", maxRouteAttempts)
}
