package rng

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestNewIsReproducible(t *testing.T) {
	a := make([]float32, 32)
	b := make([]float32, 32)
	FillUniform(New(11), a)
	FillUniform(New(11), b)
	require.Equal(t, a, b)

	c := make([]float32, 32)
	FillUniform(New(12), c)
	require.NotEqual(t, a, c)
}

func TestFillUniformRange(t *testing.T) {
	xs := make([]float32, 10000)
	FillUniform(New(1), xs)
	vals := make([]float64, len(xs))
	for i, v := range xs {
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(1))
		vals[i] = float64(v)
	}
	require.InDelta(t, 0.5, stat.Mean(vals, nil), 0.02)
}

func TestFillExponentialMoments(t *testing.T) {
	xs := make([]float32, 20000)
	FillExponential(New(2), xs)
	vals := make([]float64, len(xs))
	for i, v := range xs {
		require.Greater(t, v, float32(0))
		vals[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(vals, nil)
	require.InDelta(t, 1.0, mean, 0.05)
	require.InDelta(t, 1.0, std, 0.05)
}

func TestLockedSharesStream(t *testing.T) {
	l := NewDefault(5)
	src, unlock := l.Lock()
	first := src.Float32()
	unlock()

	ref := New(5)
	require.Equal(t, ref.Float32(), first)
}

func TestNewDefaultZeroSeed(t *testing.T) {
	l := NewDefault(0)
	src, unlock := l.Lock()
	defer unlock()
	v := src.Float32()
	require.True(t, v >= 0 && v < 1)
}
