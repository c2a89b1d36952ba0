package testutil

import (
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/spfresh/distance"
)

// SearchResult is an (id, distance) pair. IDs produced by ExactTopK are
// positions in the searched dataset.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// RNG is a seeded, goroutine-safe source of test vectors. RNGs with equal
// seeds return equal vectors for the same sequence of calls.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRNG returns an RNG seeded with seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed))}
}

// generate returns num vectors of length dim sharing one backing array,
// each filled by fill under the lock.
func (r *RNG) generate(num, dim int, fill func(vec []float32)) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	out := make([][]float32, num)
	for i := range out {
		out[i] = data[i*dim : (i+1)*dim : (i+1)*dim]
		fill(out[i])
	}
	return out
}

func (r *RNG) uniform(vec []float32) {
	for i := range vec {
		vec[i] = r.rand.Float32()
	}
}

// FillUniform fills dst with values in [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uniform(dst)
}

// UniformVectors returns num vectors with components in [0, 1).
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	return r.generate(num, dim, r.uniform)
}

// UnitVectors returns num vectors drawn uniformly from the unit sphere.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	return r.generate(num, dim, func(vec []float32) {
		for {
			for i := range vec {
				vec[i] = float32(r.rand.NormFloat64())
			}
			if distance.NormalizeL2InPlace(vec) {
				return
			}
		}
	})
}

// ClusteredVectors returns num vectors around clusters unit centroids with
// Gaussian noise of standard deviation spread per component. Vector i
// belongs to centroid i%clusters.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)
	i := 0
	return r.generate(num, dim, func(vec []float32) {
		c := centroids[i%clusters]
		for j := range vec {
			vec[j] = c[j] + float32(r.rand.NormFloat64())*spread
		}
		i++
	})
}

// ExactTopK computes the exact k nearest neighbors of query by brute force.
// IDs are positions in dataset. Ties are broken by the lower position.
func ExactTopK(query []float32, dataset [][]float32, k int, dist distance.Func) []SearchResult {
	results := make([]SearchResult, len(dataset))
	for i, v := range dataset {
		results[i] = SearchResult{ID: uint64(i), Distance: dist(query, v)}
	}
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return results[:min(k, len(results))]
}

// ComputeRecall returns the fraction of the first min(len(truth),
// len(approx)) ground truth ids found in approx. Two empty lists have
// recall 1.
func ComputeRecall(truth, approx []SearchResult) float64 {
	if len(truth) == 0 || len(approx) == 0 {
		if len(truth) == len(approx) {
			return 1
		}
		return 0
	}
	k := min(len(truth), len(approx))
	want := make(map[uint64]struct{}, k)
	for _, r := range truth[:k] {
		want[r.ID] = struct{}{}
	}
	hits := 0
	for _, r := range approx {
		if _, ok := want[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}
