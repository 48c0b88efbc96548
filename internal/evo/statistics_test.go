package evo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"evophys/internal/biophys"
)

func TestComputeStatisticsPopulationVariance(t *testing.T) {
	pop := []Individual{
		{Params: biophys.ParameterMap{"a": 1, "b": 10}, Fitness: 0.2},
		{Params: biophys.ParameterMap{"a": 2, "b": 10}, Fitness: 0.4},
		{Params: biophys.ParameterMap{"a": 3, "b": 10}, Fitness: 0.6},
	}
	stats := ComputeStatistics(pop)

	assert.InDelta(t, 2.0, stats.ParamMeans["a"], 1e-12)
	assert.InDelta(t, 2.0/3.0, stats.ParamVariances["a"], 1e-12)
	assert.InDelta(t, 10.0, stats.ParamMeans["b"], 1e-12)
	assert.InDelta(t, 0.0, stats.ParamVariances["b"], 1e-12)
	assert.InDelta(t, 0.4, stats.MeanFitness, 1e-12)
	assert.InDelta(t, 0.08/3.0, stats.FitnessVar, 1e-12)
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil)
	assert.Empty(t, stats.ParamMeans)
	assert.Zero(t, stats.MeanFitness)
}
