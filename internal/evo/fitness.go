package evo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Fitness scores candidate against target with a Gaussian kernel on their
// RMSD: exp(-(rmsd^2/2) * selectionStrength). selectionStrength scales the
// whole quotient, so larger values sharpen the kernel.
func Fitness(target, candidate []float64, selectionStrength float64) (float64, error) {
	if len(target) != len(candidate) {
		return 0, fmt.Errorf("%w: target=%d candidate=%d", ErrLengthMismatch, len(target), len(candidate))
	}
	if i, ok := firstNonFinite(candidate); ok {
		return 0, fmt.Errorf("%w: candidate output[%d]=%g", ErrNumericDegenerate, i, candidate[i])
	}
	if i, ok := firstNonFinite(target); ok {
		return 0, fmt.Errorf("%w: target output[%d]=%g", ErrNumericDegenerate, i, target[i])
	}
	msd := MeanSquaredDeviation(target, candidate)
	w := math.Exp(-(msd / 2) * selectionStrength)
	if math.IsNaN(w) {
		return 0, fmt.Errorf("%w: msd=%g selection strength=%g", ErrNumericDegenerate, msd, selectionStrength)
	}
	return w, nil
}

// RMSD is the root-mean-square deviation of two equal-length sequences.
func RMSD(target, candidate []float64) (float64, error) {
	if len(target) != len(candidate) {
		return 0, fmt.Errorf("%w: target=%d candidate=%d", ErrLengthMismatch, len(target), len(candidate))
	}
	return math.Sqrt(MeanSquaredDeviation(target, candidate)), nil
}

// MeanSquaredDeviation assumes equal lengths; empty input yields 0.
func MeanSquaredDeviation(target, candidate []float64) float64 {
	if len(target) == 0 {
		return 0
	}
	d := floats.Distance(target, candidate, 2)
	return d * d / float64(len(target))
}

func firstNonFinite(values []float64) (int, bool) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i, true
		}
	}
	return 0, false
}
