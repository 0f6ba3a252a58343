package vectorcodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/memvault/internal/vectorcodec"
)

func TestCosineSelfAndOpposite(t *testing.T) {
	v := []float32{1, 2, 3, 4}
	neg := vectorcodec.Scale(v, -1)

	self, err := vectorcodec.Cosine(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-6)

	opp, err := vectorcodec.Cosine(v, neg)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opp, 1e-6)
}

func TestCosineZeroVectorNeverNaN(t *testing.T) {
	zero := []float32{0, 0, 0}
	v := []float32{1, 2, 3}

	sim, err := vectorcodec.Cosine(zero, v)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
	assert.False(t, sim != sim, "must not be NaN")
}

func TestCosineBounds(t *testing.T) {
	a := []float32{0.3, -0.7, 1.2, 5.1}
	b := []float32{-2.0, 0.4, 0.1, 3.3}
	sim, err := vectorcodec.Cosine(a, b)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sim, -1.0-1e-9)
	assert.LessOrEqual(t, sim, 1.0+1e-9)
}

func TestDimensionMismatchErrors(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{1, 2, 3}

	_, err := vectorcodec.Cosine(a, b)
	require.ErrorIs(t, err, vectorcodec.ErrDimensionMismatch)

	_, err = vectorcodec.Dot(a, b)
	require.ErrorIs(t, err, vectorcodec.ErrDimensionMismatch)

	_, err = vectorcodec.Euclidean(a, b)
	require.ErrorIs(t, err, vectorcodec.ErrDimensionMismatch)

	_, err = vectorcodec.Add(a, b)
	require.ErrorIs(t, err, vectorcodec.ErrDimensionMismatch)

	_, err = vectorcodec.Subtract(a, b)
	require.ErrorIs(t, err, vectorcodec.ErrDimensionMismatch)
}

func TestNormalizeZeroVector(t *testing.T) {
	out := vectorcodec.Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, out)
}

func TestNormalizeUnitMagnitude(t *testing.T) {
	out := vectorcodec.Normalize([]float32{3, 4})
	assert.InDelta(t, 1.0, vectorcodec.Magnitude(out), 1e-6)
}

func TestAddSubtractScale(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}

	sum, err := vectorcodec.Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 7, 9}, sum)

	diff, err := vectorcodec.Subtract(b, a)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3, 3}, diff)

	scaled := vectorcodec.Scale(a, 2)
	assert.Equal(t, []float32{2, 4, 6}, scaled)
}
