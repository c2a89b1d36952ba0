package searcher

import "sync"

// Searcher is a reusable execution context for a single query.
//
// Searcher is NOT thread-safe. It is intended to be owned by a single goroutine
// during a search operation.
type Searcher struct {
	// Visited tracks head index nodes already pushed onto the frontier.
	Visited *VisitedSet

	// Frontier is a min-heap of head index nodes to expand, nearest first.
	Frontier *PriorityQueue

	// Heads is a bounded max-heap of candidate heads (posting lists to scan).
	Heads *PriorityQueue

	// Results is a bounded max-heap holding the current top-k vectors.
	Results *PriorityQueue

	// Query is a scratch buffer for the (possibly normalized) query vector.
	Query []float32

	// Checks counts centroid distance evaluations during traversal.
	Checks int
}

var searcherPool = sync.Pool{
	New: func() any {
		return NewSearcher(1024)
	},
}

// NewSearcher creates a new searcher with the given visited-set capacity.
func NewSearcher(visitedCap int) *Searcher {
	return &Searcher{
		Visited:  NewVisitedSet(visitedCap),
		Frontier: NewPriorityQueue(false),
		Heads:    NewPriorityQueue(true),
		Results:  NewPriorityQueue(true),
	}
}

// Get returns a Searcher from the pool.
func Get() *Searcher {
	s := searcherPool.Get().(*Searcher)
	s.Reset()
	return s
}

// Put returns a Searcher to the pool.
func Put(s *Searcher) {
	searcherPool.Put(s)
}

// Reset clears the searcher state for reuse.
func (s *Searcher) Reset() {
	s.Visited.Reset()
	s.Frontier.Reset()
	s.Heads.Reset()
	s.Results.Reset()
	s.Query = s.Query[:0]
	s.Checks = 0
}
