package evo

import (
	"errors"
	"math"

	"evophys/internal/biophys"
)

// linearModel outputs its parameter values in name order.
type linearModel struct {
	params biophys.ParameterMap
}

func (m linearModel) Output() []float64 {
	names := m.params.Names()
	out := make([]float64, len(names))
	for i, name := range names {
		out[i] = m.params[name]
	}
	return out
}

func (m linearModel) Params() biophys.ParameterMap {
	return m.params.Clone()
}

func newLinearModel(params biophys.ParameterMap) (biophys.Model, error) {
	return linearModel{params: params.Clone()}, nil
}

// nanModel reports NaN for every output point.
type nanModel struct {
	params biophys.ParameterMap
}

func (m nanModel) Output() []float64 {
	out := make([]float64, len(m.params))
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func (m nanModel) Params() biophys.ParameterMap { return m.params.Clone() }

var errTooLarge = errors.New("parameter too large")

// cappedConstructor fails whenever any parameter exceeds limit.
func cappedConstructor(limit float64) biophys.Constructor {
	return func(params biophys.ParameterMap) (biophys.Model, error) {
		for _, v := range params {
			if v > limit {
				return nil, errTooLarge
			}
		}
		return newLinearModel(params)
	}
}

// scriptedSource returns fixed or scripted draws so tests can pin every
// random decision an engine makes.
type scriptedSource struct {
	uniform     float64
	exponential []float64
	normal      func(mu, sigma float64) float64
	intN        func(n int) int
	sample      func(n, k int) []int
	resample    func(weights []float64, n int) ([]int, error)

	expCalls    int
	normalCalls int
	sigmas      []float64
}

func (s *scriptedSource) Float64() float64 {
	return s.uniform
}

func (s *scriptedSource) Uniform(lo, hi float64) float64 {
	return lo + s.uniform*(hi-lo)
}

func (s *scriptedSource) Normal(mu, sigma float64) float64 {
	s.normalCalls++
	s.sigmas = append(s.sigmas, sigma)
	if s.normal == nil {
		return mu
	}
	return s.normal(mu, sigma)
}

func (s *scriptedSource) Exponential(_ float64) float64 {
	s.expCalls++
	if len(s.exponential) == 0 {
		return 1
	}
	v := s.exponential[0]
	if len(s.exponential) > 1 {
		s.exponential = s.exponential[1:]
	}
	return v
}

func (s *scriptedSource) IntN(n int) int {
	if s.intN == nil {
		return 0
	}
	return s.intN(n)
}

func (s *scriptedSource) Sample(n, k int) []int {
	if s.sample != nil {
		return s.sample(n, k)
	}
	out := make([]int, k)
	for i := range out {
		out[i] = i
	}
	return out
}

func (s *scriptedSource) Resample(weights []float64, n int) ([]int, error) {
	if s.resample != nil {
		return s.resample(weights, n)
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i % len(weights)
	}
	return out, nil
}
