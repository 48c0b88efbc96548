package evo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evophys/internal/biophys"
)

func TestBrownianSingleParameterScope(t *testing.T) {
	src := &scriptedSource{
		normal: func(mu, _ float64) float64 { return mu + 3 },
		intN:   func(n int) int { return n - 1 },
	}
	in := biophys.ParameterMap{"a": 1, "b": 2}
	op := Brownian{Mutable: []string{"a", "b"}, Dt: 1}

	out, moved, err := op.Step(src, in)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, moved)

	changed := 0
	for name := range in {
		if in[name] != out[name] {
			changed++
		}
	}
	assert.Equal(t, 1, changed)
	assert.Equal(t, 5.0, out["b"])
	assert.Equal(t, biophys.ParameterMap{"a": 1, "b": 2}, in, "input must not be modified")
}

func TestBrownianMutateAllLeavesStaticParameters(t *testing.T) {
	src := &scriptedSource{normal: func(mu, _ float64) float64 { return mu + 1 }}
	in := biophys.ParameterMap{"a": 1, "b": 2, "c": 3}
	op := Brownian{Mutable: []string{"a", "b"}, MutateAll: true, Dt: 0.5}

	out, moved, err := op.Step(src, in)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, moved)
	assert.Equal(t, biophys.ParameterMap{"a": 2, "b": 3, "c": 3}, out)
	assert.Equal(t, []float64{1, 1}, src.sigmas, "noise scale is 2*dt")
}

func TestBrownianClampsAtZero(t *testing.T) {
	src := &scriptedSource{normal: func(mu, _ float64) float64 { return mu - 5 }}
	out, _, err := Brownian{Mutable: []string{"a"}, MutateAll: true, Dt: 1}.Step(src, biophys.ParameterMap{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["a"])
}

func TestBrownianNonNegative(t *testing.T) {
	src := NewSource(3)
	op := Brownian{Mutable: []string{"a", "b"}, MutateAll: true, Dt: 10}
	params := biophys.ParameterMap{"a": 0, "b": 0.5}
	for i := 0; i < 500; i++ {
		var err error
		params, _, err = op.Step(src, params)
		require.NoError(t, err)
		for name, v := range params {
			require.GreaterOrEqualf(t, v, 0.0, "parameter %s went negative", name)
		}
	}
}

func TestBrownianUnknownParameter(t *testing.T) {
	_, _, err := Brownian{Mutable: []string{"z"}, MutateAll: true, Dt: 1}.Step(NewSource(1), biophys.ParameterMap{"a": 1})
	require.ErrorIs(t, err, ErrUnknownParameter)
}

func TestBrownianRequiresSource(t *testing.T) {
	_, _, err := Brownian{Mutable: []string{"a"}}.Step(nil, biophys.ParameterMap{"a": 1})
	require.Error(t, err)
}
