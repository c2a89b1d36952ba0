package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/hupe1980/spfresh/distance"
)

// ErrInvalidInput is returned for empty or malformed training input.
var ErrInvalidInput = errors.New("kmeans: invalid input")

// Clustering is the outcome of a training run.
type Clustering struct {
	// Centroids holds k*dim values, one centroid per row.
	Centroids []float32
	// Assignments maps every input row to its cluster.
	Assignments []int
	// Counts is the number of rows assigned to each cluster.
	Counts []int
	K      int
	Dim    int
}

// Centroid returns the i-th centroid.
func (c *Clustering) Centroid(i int) []float32 {
	return c.Centroids[i*c.Dim : (i+1)*c.Dim]
}

// NonEmpty returns the number of clusters with at least one member.
func (c *Clustering) NonEmpty() int {
	n := 0
	for _, cnt := range c.Counts {
		if cnt > 0 {
			n++
		}
	}
	return n
}

// TrainKMeans trains k centroids from the given vectors using Lloyd's algorithm.
// vectors is a flattened n*dim matrix. k is clamped to n. The rng drives
// centroid initialization and empty-cluster reseeding, so equal seeds give
// equal clusterings.
func TrainKMeans(ctx context.Context, vectors []float32, dim int, k int, maxIter int, rng *rand.Rand) (*Clustering, error) {
	if dim <= 0 || len(vectors) == 0 || len(vectors)%dim != 0 || k <= 0 {
		return nil, ErrInvalidInput
	}
	n := len(vectors) / dim
	if k > n {
		k = n
	}
	if maxIter <= 0 {
		maxIter = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	centroids := make([]float32, k*dim)

	// Initialize centroids randomly from data points
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float64, k*dim)

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false

		// Assignment step
		for i := 0; i < n; i++ {
			best, _ := Nearest(vectors[i*dim:(i+1)*dim], centroids, dim)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		// Update step
		clear(sums)
		clear(counts)

		for i := 0; i < n; i++ {
			c := assignments[i]
			accumulate(sums[c*dim:(c+1)*dim], vectors[i*dim:(i+1)*dim])
			counts[c]++
		}

		for j := 0; j < k; j++ {
			center := centroids[j*dim : (j+1)*dim]
			if counts[j] > 0 {
				average(center, sums[j*dim:(j+1)*dim], counts[j])
			} else {
				// Reseed an empty cluster with a random point.
				idx := rng.Intn(n)
				copy(center, vectors[idx*dim:(idx+1)*dim])
			}
		}
	}

	// Counts must match the final assignments.
	clear(counts)
	for _, c := range assignments {
		counts[c]++
	}

	return &Clustering{
		Centroids:   centroids,
		Assignments: assignments,
		Counts:      counts,
		K:           k,
		Dim:         dim,
	}, nil
}

// Nearest returns the index of the centroid closest to vec and its squared
// L2 distance. Ties resolve to the lower index. Distances that overflow to
// +Inf tie as well, so the result is a valid index whenever centroids is
// non-empty.
func Nearest(vec []float32, centroids []float32, dim int) (int, float32) {
	k := len(centroids) / dim
	best := 0
	minDist := float32(math.Inf(1))
	for j := 0; j < k; j++ {
		d := distance.SquaredL2(vec, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			best = j
		}
	}
	return best, minDist
}

// Mean computes the component-wise mean of the given rows of vectors.
func Mean(vectors []float32, dim int, rows []int) []float32 {
	mean := make([]float32, dim)
	if len(rows) == 0 {
		return mean
	}
	sum := make([]float64, dim)
	for _, r := range rows {
		accumulate(sum, vectors[r*dim:(r+1)*dim])
	}
	average(mean, sum, len(rows))
	return mean
}

// accumulate adds v to sum in float64 so large components do not overflow.
func accumulate(sum []float64, v []float32) {
	for i, x := range v {
		sum[i] += float64(x)
	}
}

func average(dst []float32, sum []float64, n int) {
	for i, x := range sum {
		dst[i] = float32(x / float64(n))
	}
}
