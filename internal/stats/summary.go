package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"evophys/internal/model"
)

// TrajectorySummary condenses a fitness series.
type TrajectorySummary struct {
	Initial     float64 `json:"initial"`
	Final       float64 `json:"final"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Improvement float64 `json:"improvement"`
}

// SummarizeTrajectory returns the zero summary for an empty series. Std is
// the sample standard deviation and is zero for a single value.
func SummarizeTrajectory(values []float64) TrajectorySummary {
	if len(values) == 0 {
		return TrajectorySummary{}
	}
	out := TrajectorySummary{
		Initial: values[0],
		Final:   values[len(values)-1],
		Min:     floats.Min(values),
		Max:     floats.Max(values),
	}
	out.Improvement = out.Final - out.Initial
	if len(values) == 1 {
		out.Mean = values[0]
		return out
	}
	out.Mean, out.Std = stat.MeanStdDev(values, nil)
	return out
}

func MeanFitnessSeries(history []model.PopulationGeneration) []float64 {
	out := make([]float64, len(history))
	for i, gen := range history {
		out[i] = gen.MeanFitness
	}
	return out
}

func LineageFitnessSeries(samples []model.LineageSample) []float64 {
	out := make([]float64, len(samples))
	for i, sample := range samples {
		out[i] = sample.Fitness
	}
	return out
}
