package evo

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source supplies every random draw an engine makes. Each engine owns its
// source; tests substitute deterministic implementations.
type Source interface {
	// Float64 returns a uniform draw in [0, 1).
	Float64() float64
	Uniform(lo, hi float64) float64
	Normal(mu, sigma float64) float64
	Exponential(rate float64) float64
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
	// Sample returns k distinct indices drawn uniformly from [0, n).
	Sample(n, k int) []int
	// Resample draws n indices with replacement, proportional to weights.
	Resample(weights []float64, n int) ([]int, error)
}

type rngSource struct {
	src rand.Source
	rng *rand.Rand
}

// NewSource returns a PCG-backed Source seeded deterministically.
func NewSource(seed uint64) Source {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &rngSource{src: src, rng: rand.New(src)}
}

func (s *rngSource) Float64() float64 {
	return s.rng.Float64()
}

func (s *rngSource) Uniform(lo, hi float64) float64 {
	if lo == hi {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: s.src}.Rand()
}

func (s *rngSource) Normal(mu, sigma float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

func (s *rngSource) Exponential(rate float64) float64 {
	return distuv.Exponential{Rate: rate, Src: s.src}.Rand()
}

func (s *rngSource) IntN(n int) int {
	return s.rng.IntN(n)
}

func (s *rngSource) Sample(n, k int) []int {
	if k > n {
		k = n
	}
	return s.rng.Perm(n)[:k]
}

func (s *rngSource) Resample(weights []float64, n int) ([]int, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("resample requires at least one weight")
	}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %g at index %d", w, i)
		}
	}
	cat := distuv.NewCategorical(weights, s.src)
	out := make([]int, n)
	for i := range out {
		out[i] = int(cat.Rand())
	}
	return out, nil
}
