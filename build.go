package spfresh

import (
	"cmp"
	"context"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/hupe1980/spfresh/internal/headindex"
	"github.com/hupe1980/spfresh/internal/params"
	"github.com/hupe1980/spfresh/internal/posting"
)

// Build selects heads from the stored vectors and assigns every vector to
// the posting list of its nearest head. On a ready index Build rebuilds from
// all stored records.
//
// Build is an exclusive phase: it waits for in-flight calls and blocks new
// ones until it returns. A failed Build leaves the index in StateFailed;
// further Build calls return ErrBuildFailed and only Load recovers it.
func (x *Index) Build(ctx context.Context) (err error) {
	if x == nil {
		return ErrInvalidParameter
	}
	start := time.Now()
	var vectors, heads int
	defer func() {
		x.metrics.RecordBuild(vectors, heads, time.Since(start), err)
		x.logger.LogBuild(ctx, vectors, heads, time.Since(start), err)
	}()
	defer recoverError(&err)

	vectors, heads, err = x.build(ctx)
	return translateError(err)
}

func (x *Index) build(ctx context.Context) (int, int, error) {
	x.phase.Lock()
	defer x.phase.Unlock()

	switch x.State() {
	case StateClosed:
		return 0, 0, ErrClosed
	case StateFailed:
		return 0, 0, fmt.Errorf("%w: index is in failed state", ErrBuildFailed)
	}

	records := x.corpus()
	if len(records) == 0 {
		return 0, 0, invalidParam("no vectors to build from")
	}

	x.state.Store(int32(StateBuilding))
	defer func() {
		// A panic below must not leave the index building.
		if x.State() == StateBuilding {
			x.state.Store(int32(StateFailed))
		}
	}()

	ix, store, err := x.buildFrom(ctx, records)
	if err != nil {
		x.state.Store(int32(StateFailed))
		return len(records), 0, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	x.head.Store(ix)
	x.postings = store
	x.stageMu.Lock()
	x.staged = nil
	x.stageMu.Unlock()
	clear(x.splitSkip)
	x.state.Store(int32(StateReady))
	return len(records), ix.NumHeads(), nil
}

// corpus returns every stored and staged record in id order.
func (x *Index) corpus() []posting.Record {
	records := make([]posting.Record, 0, x.postings.Count()+x.numStaged())
	for _, h := range x.postings.Heads() {
		if v, ok := x.postings.View(h); ok {
			for rec := range v.All() {
				records = append(records, rec)
			}
		}
	}
	x.stageMu.Lock()
	records = append(records, x.staged...)
	x.stageMu.Unlock()

	slices.SortFunc(records, func(a, b posting.Record) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return records
}

func (x *Index) headConfig() headindex.BuildConfig {
	return headindex.BuildConfig{
		Variant:    x.Variant(),
		TreeNumber: x.params.Int(params.SelectHead, params.TreeNumber),
		K:          x.params.Int(params.SelectHead, params.BKTKmeansK),
		LeafSize:   x.params.Int(params.SelectHead, params.BKTLeafSize),
		Iterations: x.params.Int(params.SelectHead, params.KmeansIterations),
		Seed:       int64(x.params.Int(params.SelectHead, params.Seed)),
		Pool:       x.pool,
		Logger:     x.logger.Logger,
	}
}

func (x *Index) buildFrom(ctx context.Context, records []posting.Record) (*headindex.Index, *posting.Store, error) {
	dim := x.dim
	n := len(records)
	points := make([]float32, 0, n*dim)
	for _, rec := range records {
		points = append(points, rec.Vector...)
	}

	cfg := x.headConfig()
	size := headindex.SampleSize(n,
		x.params.Float(params.SelectHead, params.Ratio),
		x.params.Int(params.SelectHead, params.SamplesNumber),
		max(cfg.K, 2)*max(cfg.LeafSize, 1),
	)
	rows := headindex.SampleRows(n, size, rand.New(rand.NewSource(cfg.Seed)))
	sample := make([]float32, 0, len(rows)*dim)
	for _, r := range rows {
		sample = append(sample, points[r*dim:(r+1)*dim]...)
	}
	x.logger.DebugContext(ctx, "selecting heads",
		"vectors", n,
		"sample", len(rows),
		"variant", cfg.Variant.String(),
	)

	ix, err := headindex.Build(ctx, sample, dim, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("select heads: %w", err)
	}

	assign, err := ix.Assign(ctx, points, x.maxCheck(params.BuildHead), x.pool)
	if err != nil {
		return nil, nil, fmt.Errorf("assign corpus: %w", err)
	}

	heads := ix.HeadIDs()
	members := make(map[uint32][]int, len(heads))
	for row, h := range assign {
		members[h] = append(members[h], row)
	}

	store := posting.NewStore(dim)
	lists := make([]*posting.List, len(heads))
	for i, h := range heads {
		if lists[i], err = store.Create(h); err != nil {
			return nil, nil, err
		}
	}
	err = x.pool.ForEach(ctx, len(heads), func(_ context.Context, i int) error {
		for _, row := range members[heads[i]] {
			if _, err := lists[i].Append(records[row]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fill posting lists: %w", err)
	}
	return ix, store, nil
}
