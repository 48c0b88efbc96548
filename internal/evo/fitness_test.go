package evo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitnessIdenticalCurvesIsOne(t *testing.T) {
	w, err := Fitness([]float64{0, 0, 0}, []float64{0, 0, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, 1.0, w)
}

func TestFitnessLengthMismatch(t *testing.T) {
	_, err := Fitness([]float64{0, 0}, []float64{0, 0, 0}, 1)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestFitnessRejectsNonFiniteOutput(t *testing.T) {
	_, err := Fitness([]float64{0, 0, 0}, []float64{0, math.NaN(), 0}, 1)
	require.ErrorIs(t, err, ErrNumericDegenerate)

	_, err = Fitness([]float64{0, 0}, []float64{math.Inf(1), 0}, 1)
	require.ErrorIs(t, err, ErrNumericDegenerate)

	_, err = Fitness([]float64{math.Inf(-1)}, []float64{0}, 1)
	require.ErrorIs(t, err, ErrNumericDegenerate)
}

func TestFitnessStrengthScalesWholeQuotient(t *testing.T) {
	// rmsd^2 = 4, so the exponent is -(4/2)*0.5 = -1.
	w, err := Fitness([]float64{0}, []float64{2}, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1), w, 1e-12)

	w, err = Fitness([]float64{0, 0}, []float64{1, 3}, 2)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-5), w, 1e-12)
}

func TestFitnessEmptyCurves(t *testing.T) {
	w, err := Fitness(nil, []float64{}, 3)
	require.NoError(t, err)
	require.Equal(t, 1.0, w)
}

func TestFitnessBounds(t *testing.T) {
	src := NewSource(7)
	target := []float64{0.1, 0.5, 0.9, 1.2}
	for i := 0; i < 200; i++ {
		candidate := make([]float64, len(target))
		for j := range candidate {
			candidate[j] = target[j] + src.Normal(0, 0.5)
		}
		w, err := Fitness(target, candidate, 1)
		require.NoError(t, err)
		assert.Greater(t, w, 0.0)
		assert.Less(t, w, 1.0)
	}
}

func TestRMSD(t *testing.T) {
	d, err := RMSD([]float64{0, 0, 0, 0}, []float64{1, -1, 1, -1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-12)

	_, err = RMSD([]float64{0}, nil)
	require.ErrorIs(t, err, ErrLengthMismatch)
}
