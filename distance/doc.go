// Package distance provides the vector distance kernels used by the index.
//
// Kernels are backed by github.com/viterin/vek, which dispatches to AVX2
// implementations on amd64 and falls back to pure Go elsewhere.
//
// # Supported Metrics
//
//   - MetricL2: Squared Euclidean distance (default)
//   - MetricCosine: Cosine distance (1 - dot product of L2-normalized vectors)
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	sim := distance.Dot(a, b)
//	ok := distance.NormalizeL2InPlace(vec)
package distance
