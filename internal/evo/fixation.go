package evo

import (
	"fmt"
	"math"
)

// SelectionCoefficient is the relative advantage of a candidate over the
// incumbent.
func SelectionCoefficient(candidate, current float64) (float64, error) {
	if current == 0 || math.IsNaN(current) || math.IsNaN(candidate) {
		return 0, fmt.Errorf("%w: candidate=%g current=%g", ErrNumericDegenerate, candidate, current)
	}
	return candidate/current - 1, nil
}

// FixationProbability is Kimura's diffusion approximation
// (1-exp(-2s)) / (1-exp(-4Ns)). At s == 0 it returns the neutral limit 1/(2N).
// N must be at least 1; below that the ratio can exceed 1.
func FixationProbability(s, n float64) (float64, error) {
	if n < 1 || math.IsNaN(n) || math.IsNaN(s) {
		return 0, fmt.Errorf("%w: s=%g N=%g", ErrNumericDegenerate, s, n)
	}
	if s == 0 {
		return 1 / (2 * n), nil
	}
	p := math.Expm1(-2*s) / math.Expm1(-4*n*s)
	if math.IsNaN(p) {
		return 0, fmt.Errorf("%w: s=%g N=%g", ErrNumericDegenerate, s, n)
	}
	return p, nil
}
