package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "evophys/pkg/evophys"
)

func writeConfig(t *testing.T, payload map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadPopulationRequestFromConfig(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"model":              "hill",
		"params":             map[string]any{"Kd": 3, "n": 1.5},
		"mutable":            []any{"Kd"},
		"population":         40,
		"generations":        12,
		"dt":                 0.5,
		"selection_strength": 2,
		"mutate_all":         false,
		"start_random":       true,
		"bounds":             map[string]any{"Kd": []any{0, 10}, "n": []any{0.5, 3}},
		"seed":               77,
	})

	req, err := loadPopulationRequestFromConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hill", req.Model)
	assert.Equal(t, map[string]float64{"Kd": 3, "n": 1.5}, req.Params)
	assert.Equal(t, []string{"Kd"}, req.Mutable)
	assert.Equal(t, 40, req.N)
	assert.Equal(t, 12, req.Generations)
	require.NotNil(t, req.Dt)
	assert.Equal(t, 0.5, *req.Dt)
	require.NotNil(t, req.SelectionStrength)
	assert.Equal(t, 2.0, *req.SelectionStrength)
	assert.True(t, req.MutateSingle)
	assert.True(t, req.StartRandom)
	assert.Equal(t, uint64(77), req.Seed)
	assert.Equal(t, 10.0, req.Bounds["Kd"].Upper)
	assert.Equal(t, 0.5, req.Bounds["n"].Lower)
}

func TestLoadPopulationRequestRejectsMalformedBounds(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"bounds": map[string]any{"K1": []any{1}},
	})
	_, err := loadPopulationRequestFromConfig(path)
	require.EqualError(t, err, "bounds for K1 must be [lower, upper]")
}

func TestLoadLineageRequestFromConfigWithOverrides(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"model":           "adair",
		"population_size": 5000,
		"mutation_rate":   0.001,
		"generations":     50,
		"sample_every":    5,
		"seed":            3,
	})

	req, err := loadLineageRequestFromConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, req.N)
	assert.Equal(t, 0.001, req.Mu)
	assert.Equal(t, 5, req.SampleEvery)

	overrideLineageFromFlags(&req, map[string]bool{"gens": true, "seed": true}, map[string]any{
		"gens": 10,
		"seed": uint64(99),
		"mu":   0.5,
	})
	assert.Equal(t, 10, req.Generations)
	assert.Equal(t, uint64(99), req.Seed)
	assert.Equal(t, 0.001, req.Mu)
}

func TestOverridePopulationFromFlags(t *testing.T) {
	req := api.PopulationRequest{Model: "hill", N: 5}
	overridePopulationFromFlags(&req, map[string]bool{"pop": true, "mutate-single": true}, map[string]any{
		"pop":           25,
		"mutate-single": true,
		"model":         "adair",
	})
	assert.Equal(t, 25, req.N)
	assert.True(t, req.MutateSingle)
	assert.Equal(t, "hill", req.Model)
}

func TestAsHelpers(t *testing.T) {
	_, ok := asUint64(-1.0)
	assert.False(t, ok)
	v, ok := asUint64(12.0)
	assert.True(t, ok)
	assert.Equal(t, uint64(12), v)

	_, ok = asFloatMap(map[string]any{"a": "x"})
	assert.False(t, ok)
	_, ok = asStringSlice([]any{"a", 1})
	assert.False(t, ok)
}
