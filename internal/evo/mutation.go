package evo

import (
	"errors"
	"fmt"

	"evophys/internal/biophys"
)

// Brownian takes one Brownian step over a parameter map. Only names listed
// in Mutable move; with MutateAll unset a single one of them is picked per
// step.
type Brownian struct {
	Mutable   []string
	MutateAll bool
	Dt        float64
}

// Step returns the perturbed copy of params and the names that moved.
func (b Brownian) Step(src Source, params biophys.ParameterMap) (biophys.ParameterMap, []string, error) {
	if src == nil {
		return nil, nil, errors.New("random source is required")
	}
	if len(b.Mutable) == 0 {
		return params.Clone(), nil, nil
	}

	names := b.Mutable
	if !b.MutateAll {
		names = []string{b.Mutable[src.IntN(len(b.Mutable))]}
	}
	for _, name := range names {
		if !params.Has(name) {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
	}
	return PerturbNames(src, params, names, b.Dt), names, nil
}

// PerturbNames adds Normal(0, 2*dt) noise to each named parameter of a copy
// of params. Results below zero are clamped to zero.
func PerturbNames(src Source, params biophys.ParameterMap, names []string, dt float64) biophys.ParameterMap {
	out := params.Clone()
	for _, name := range names {
		value := out[name] + src.Normal(0, 2*dt)
		if value < 0 {
			value = 0
		}
		out[name] = value
	}
	return out
}
