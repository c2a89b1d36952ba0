package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/viterin/vek/vek32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	d := vek32.Distance(a, b)
	return d * d
}

// CosineDistance returns 1 - dot(a, b).
// Both inputs must already be L2-normalized.
func CosineDistance(a, b []float32) float32 {
	return 1 - Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm or a non-finite component.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := float64(vek32.Dot(v, v))
	if math.IsInf(norm2, 0) || math.IsNaN(norm2) {
		// Overflowed in float32; recompute in float64.
		norm2 = 0
		for _, x := range v {
			norm2 += float64(x) * float64(x)
		}
	}
	if norm2 == 0 || math.IsNaN(norm2) || math.IsInf(norm2, 0) {
		return false
	}
	inv := 1 / math.Sqrt(norm2)
	for i, x := range v {
		v[i] = float32(float64(x) * inv)
	}
	return true
}

// IsFinite reports whether every component of v is neither NaN nor ±Inf.
func IsFinite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// AddInPlace adds src to dst element-wise.
func AddInPlace(dst, src []float32) {
	if len(dst) == 0 {
		return
	}
	vek32.Add_Inplace(dst, src)
}

// ScaleInPlace multiplies every element of v by s.
func ScaleInPlace(v []float32, s float32) {
	if len(v) == 0 {
		return
	}
	vek32.MulNumber_Inplace(v, s)
}

// Metric represents the distance metric used for vector comparison.
// The metric is fixed when an index is created.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricL2 || m == MetricCosine
}

// Normalized reports whether vectors must be L2-normalized before they are
// stored or compared under this metric.
func (m Metric) Normalized() bool {
	return m == MetricCosine
}

// ParseMetric parses a metric name as produced by Metric.String.
// Matching is case-insensitive; "euclidean" and "cos" are accepted aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclidean", "":
		return MetricL2, nil
	case "cosine", "cos":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine:
		return CosineDistance, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
