package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredL2(tt.a, tt.b), 1e-4)
		})
	}
}

func TestNormalizeL2InPlace(t *testing.T) {
	v := []float32{3, 4}
	require.True(t, NormalizeL2InPlace(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	norm := math.Sqrt(float64(Dot(v, v)))
	assert.InDelta(t, 1.0, norm, 1e-6)

	assert.False(t, NormalizeL2InPlace([]float32{0, 0}))
	assert.False(t, NormalizeL2InPlace(nil))

	// The float32 squared norm overflows.
	big := []float32{3e37, 4e37}
	require.True(t, NormalizeL2InPlace(big))
	assert.InDelta(t, 0.6, big[0], 1e-6)
	assert.InDelta(t, 0.8, big[1], 1e-6)

	assert.False(t, NormalizeL2InPlace([]float32{float32(math.NaN()), 1}))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite([]float32{0, -1, math.MaxFloat32}))
	assert.True(t, IsFinite(nil))
	assert.False(t, IsFinite([]float32{1, float32(math.NaN())}))
	assert.False(t, IsFinite([]float32{float32(math.Inf(-1))}))
}

func TestNormalizeL2Copy(t *testing.T) {
	src := []float32{0, 2}
	dst, ok := NormalizeL2Copy(src)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 2}, src, "source must not be modified")
	assert.InDelta(t, 1.0, dst[1], 1e-6)

	_, ok = NormalizeL2Copy([]float32{0, 0, 0})
	assert.False(t, ok)
}

func TestCosineDistance(t *testing.T) {
	a, _ := NormalizeL2Copy([]float32{1, 0})
	b, _ := NormalizeL2Copy([]float32{0, 1})
	c, _ := NormalizeL2Copy([]float32{2, 0})

	assert.InDelta(t, 1.0, CosineDistance(a, b), 1e-6)
	assert.InDelta(t, 0.0, CosineDistance(a, c), 1e-6)
}

func TestAddAndScale(t *testing.T) {
	dst := []float32{1, 2, 3}
	AddInPlace(dst, []float32{1, 1, 1})
	assert.Equal(t, []float32{2, 3, 4}, dst)

	ScaleInPlace(dst, 0.5)
	assert.Equal(t, []float32{1, 1.5, 2}, dst)
}

func TestMetric(t *testing.T) {
	assert.Equal(t, "L2", MetricL2.String())
	assert.Equal(t, "Cosine", MetricCosine.String())
	assert.Equal(t, "Unknown(9)", Metric(9).String())

	assert.True(t, MetricL2.Valid())
	assert.False(t, Metric(9).Valid())
	assert.True(t, MetricCosine.Normalized())
	assert.False(t, MetricL2.Normalized())

	for _, name := range []string{"L2", "l2", "euclidean"} {
		m, err := ParseMetric(name)
		require.NoError(t, err)
		assert.Equal(t, MetricL2, m)
	}
	m, err := ParseMetric("COSINE")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	_, err = ParseMetric("hamming")
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	f, err := Provider(MetricL2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, f([]float32{0, 0}, []float32{1, 1}), 1e-5)

	f, err = Provider(MetricCosine)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, f([]float32{1, 0}, []float32{1, 0}), 1e-6)

	_, err = Provider(Metric(42))
	assert.Error(t, err)
}
