package headindex

import (
	"context"

	"github.com/hupe1980/spfresh/distance"
	"github.com/hupe1980/spfresh/internal/resource"
	"github.com/hupe1980/spfresh/internal/searcher"
)

// Candidate is a head selected by a traversal.
type Candidate struct {
	Head     uint32
	Distance float32
}

// Search runs a best-first traversal from every root and returns up to
// maxHeads heads nearest to query, nearest first.
//
// Every centroid evaluation counts against maxCheck. Once the budget is spent
// and at least one head has been collected, internal nodes are no longer
// expanded; the traversal only drains already evaluated heads until maxHeads
// are collected or the frontier runs dry. Roots are always evaluated, so a
// flat index is searched exhaustively.
func (ix *Index) Search(query []float32, maxCheck, maxHeads int, s *searcher.Searcher) ([]Candidate, error) {
	if len(query) != ix.dim {
		return nil, ErrDimension
	}
	if maxHeads <= 0 {
		maxHeads = 1
	}
	if maxCheck <= 0 {
		maxCheck = 1
	}

	if s == nil {
		s = searcher.Get()
		defer searcher.Put(s)
	}
	s.Visited.Reset()
	s.Frontier.Reset()
	s.Heads.Reset()
	s.Checks = 0

	for _, r := range ix.roots {
		ix.evaluate(query, r, s)
	}

	for s.Frontier.Len() > 0 {
		spent := s.Checks >= maxCheck
		if spent && s.Heads.Len() >= maxHeads {
			break
		}
		item, _ := s.Frontier.PopItem()
		nd := &ix.nodes[item.Node]
		if nd.IsLeaf() {
			s.Heads.PushItemBounded(searcher.PriorityQueueItem{
				Node:     uint64(nd.Head),
				Distance: item.Distance,
			}, maxHeads)
			continue
		}
		if spent && s.Heads.Len() > 0 {
			continue
		}
		for _, c := range nd.Children {
			ix.evaluate(query, c, s)
		}
	}

	if s.Heads.Len() == 0 {
		return nil, ErrNoCandidates
	}
	items := s.Heads.Sorted()
	out := make([]Candidate, len(items))
	for i, it := range items {
		out[i] = Candidate{Head: uint32(it.Node), Distance: it.Distance}
	}
	return out, nil
}

func (ix *Index) evaluate(query []float32, node int32, s *searcher.Searcher) {
	if !s.Visited.Visit(uint32(node)) {
		return
	}
	s.Checks++
	s.Frontier.PushItem(searcher.PriorityQueueItem{
		Node:     uint64(node),
		Distance: distance.SquaredL2(query, ix.nodes[node].Centroid),
	})
}

// Route returns the single head a vector is assigned to.
func (ix *Index) Route(vec []float32, maxCheck int, s *searcher.Searcher) (uint32, error) {
	c, err := ix.Search(vec, maxCheck, 1, s)
	if err != nil {
		return 0, err
	}
	return c[0].Head, nil
}

// Assign routes every row of the flattened n*dim matrix vectors in parallel
// on pool and returns the head of each row.
func (ix *Index) Assign(ctx context.Context, vectors []float32, maxCheck int, pool *resource.Controller) ([]uint32, error) {
	if len(vectors)%ix.dim != 0 {
		return nil, ErrDimension
	}
	n := len(vectors) / ix.dim
	heads := make([]uint32, n)
	err := pool.ParallelRange(ctx, n, func(ctx context.Context, lo, hi int) error {
		s := searcher.Get()
		defer searcher.Put(s)
		for i := lo; i < hi; i++ {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			h, err := ix.Route(vectors[i*ix.dim:(i+1)*ix.dim], maxCheck, s)
			if err != nil {
				return err
			}
			heads[i] = h
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return heads, nil
}
