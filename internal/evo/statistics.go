package evo

import "gonum.org/v1/gonum/stat"

// Statistics summarizes a population. Variances are population variances
// (divide by N).
type Statistics struct {
	ParamMeans     map[string]float64 `json:"param_means"`
	ParamVariances map[string]float64 `json:"param_variances"`
	MeanFitness    float64            `json:"mean_fitness"`
	FitnessVar     float64            `json:"fitness_variance"`
}

// ComputeStatistics derives Statistics from pop. Parameter names come from
// the first individual; every member of a population shares them.
func ComputeStatistics(pop []Individual) Statistics {
	out := Statistics{
		ParamMeans:     map[string]float64{},
		ParamVariances: map[string]float64{},
	}
	if len(pop) == 0 {
		return out
	}

	names := pop[0].Params.Names()
	values := make(map[string][]float64, len(names))
	fitness := make([]float64, len(pop))
	for i, ind := range pop {
		for _, name := range names {
			values[name] = append(values[name], ind.Params[name])
		}
		fitness[i] = ind.Fitness
	}

	for _, name := range names {
		mean, variance := stat.PopMeanVariance(values[name], nil)
		out.ParamMeans[name] = mean
		out.ParamVariances[name] = variance
	}
	out.MeanFitness, out.FitnessVar = stat.PopMeanVariance(fitness, nil)
	return out
}

func cloneStatistics(s Statistics) Statistics {
	out := Statistics{
		ParamMeans:     make(map[string]float64, len(s.ParamMeans)),
		ParamVariances: make(map[string]float64, len(s.ParamVariances)),
		MeanFitness:    s.MeanFitness,
		FitnessVar:     s.FitnessVar,
	}
	for k, v := range s.ParamMeans {
		out.ParamMeans[k] = v
	}
	for k, v := range s.ParamVariances {
		out.ParamVariances[k] = v
	}
	return out
}
