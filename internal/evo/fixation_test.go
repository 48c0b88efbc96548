package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixationProbabilityNeutralLimit(t *testing.T) {
	p, err := FixationProbability(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1.0/2000, p)

	near, err := FixationProbability(1e-12, 1000)
	require.NoError(t, err)
	assert.InDelta(t, p, near, 1e-9)
}

func TestFixationProbabilityKimura(t *testing.T) {
	s, n := 0.01, 100.0
	p, err := FixationProbability(s, n)
	require.NoError(t, err)
	want := (1 - math.Exp(-2*s)) / (1 - math.Exp(-4*n*s))
	assert.InDelta(t, want, p, 1e-12)

	deleterious, err := FixationProbability(-0.5, 1e6)
	require.NoError(t, err)
	assert.Equal(t, 0.0, deleterious)

	strong, err := FixationProbability(2, 1e6)
	require.NoError(t, err)
	assert.InDelta(t, 1-math.Exp(-4), strong, 1e-12)
}

func TestFixationProbabilityDegenerate(t *testing.T) {
	_, err := FixationProbability(0.1, 0)
	require.ErrorIs(t, err, ErrNumericDegenerate)

	_, err = FixationProbability(math.NaN(), 10)
	require.ErrorIs(t, err, ErrNumericDegenerate)

	_, err = FixationProbability(1, 0.25)
	require.ErrorIs(t, err, ErrNumericDegenerate)
}

func TestFixationProbabilityIsAProbability(t *testing.T) {
	for _, n := range []float64{1, 1.5, 10, 1e6} {
		for _, s := range []float64{-5, -0.5, -1e-3, 1e-3, 0.5, 5, 50} {
			p, err := FixationProbability(s, n)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p, 0.0, "s=%g N=%g", s, n)
			assert.LessOrEqual(t, p, 1.0, "s=%g N=%g", s, n)
		}
	}
}

func TestSelectionCoefficient(t *testing.T) {
	s, err := SelectionCoefficient(0.5, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)

	_, err = SelectionCoefficient(0.5, 0)
	require.ErrorIs(t, err, ErrNumericDegenerate)
}
