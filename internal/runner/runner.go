package runner

import (
	"context"
	"fmt"
	"log/slog"

	"evophys/internal/biophys"
	"evophys/internal/evo"
	"evophys/internal/model"
	"evophys/internal/storage"
)

type PopulationRunConfig struct {
	Engine      evo.PopulationConfig
	Seed        uint64
	Generations int
	// FitnessGoal stops the run once mean fitness reaches it; <= 0 disables.
	FitnessGoal float64
	Logger      *slog.Logger
}

type PopulationRunResult struct {
	History     []model.PopulationGeneration
	Final       evo.Statistics
	Best        evo.Individual
	Generations int
	GoalReached bool
}

// RunPopulation drives a PhysPopulation through procreate/select cycles and
// records a summary after initialization and after every generation.
func RunPopulation(ctx context.Context, cfg PopulationRunConfig) (PopulationRunResult, error) {
	if cfg.Generations < 0 {
		return PopulationRunResult{}, fmt.Errorf("generations must be >= 0")
	}
	logger := loggerOrDiscard(cfg.Logger)
	if cfg.Engine.Source == nil {
		cfg.Engine.Source = evo.NewSource(cfg.Seed)
	}

	pop, err := evo.NewPhysPopulation(cfg.Engine)
	if err != nil {
		return PopulationRunResult{}, err
	}
	logger.Info("population run started",
		"n", cfg.Engine.N,
		"generations", cfg.Generations,
		"mutable", cfg.Engine.Mutable,
		"start_random", cfg.Engine.StartRandom,
	)

	history := make([]model.PopulationGeneration, 0, cfg.Generations+1)
	record := func() error {
		best, err := pop.Best()
		if err != nil {
			return err
		}
		history = append(history, summarizePopulation(pop.Generation(), pop.Statistics(), best.Fitness))
		return nil
	}
	if err := record(); err != nil {
		return PopulationRunResult{}, err
	}

	result := PopulationRunResult{}
	for gen := 0; gen < cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return PopulationRunResult{}, err
		}
		if err := pop.Step(); err != nil {
			return PopulationRunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}
		if err := record(); err != nil {
			return PopulationRunResult{}, err
		}

		last := history[len(history)-1]
		logger.Debug("generation complete",
			"generation", last.Generation,
			"mean_fitness", last.MeanFitness,
			"fitness_variance", last.FitnessVar,
			"best_fitness", last.BestFitness,
		)
		if cfg.FitnessGoal > 0 && last.MeanFitness >= cfg.FitnessGoal {
			result.GoalReached = true
			logger.Info("fitness goal reached", "generation", last.Generation, "goal", cfg.FitnessGoal)
			break
		}
	}

	best, err := pop.Best()
	if err != nil {
		return PopulationRunResult{}, err
	}
	result.History = history
	result.Final = pop.Statistics()
	result.Best = best
	result.Generations = pop.Generation()
	logger.Info("population run finished",
		"generations", result.Generations,
		"mean_fitness", result.Final.MeanFitness,
		"best_fitness", best.Fitness,
	)
	return result, nil
}

func summarizePopulation(generation int, stats evo.Statistics, best float64) model.PopulationGeneration {
	return model.PopulationGeneration{
		Generation:     generation,
		MeanFitness:    stats.MeanFitness,
		FitnessVar:     stats.FitnessVar,
		BestFitness:    best,
		ParamMeans:     stats.ParamMeans,
		ParamVariances: stats.ParamVariances,
	}
}

type LineageRunConfig struct {
	Engine      evo.LineageConfig
	Seed        uint64
	Generations int
	// SampleEvery records every n-th generation of the trajectory; the final
	// generation is always recorded. Values <= 0 mean 1.
	SampleEvery int
	Logger      *slog.Logger
}

type LineageRunResult struct {
	Trajectory   []model.LineageSample
	Fixations    []model.FixationEvent
	FinalFitness float64
	FinalParams  biophys.ParameterMap
	Attempts     int
	Fixed        int
}

// RunLineage advances a WrightFisherSim for the requested generations and
// records every mutation attempt.
func RunLineage(ctx context.Context, cfg LineageRunConfig) (LineageRunResult, error) {
	if cfg.Generations < 0 {
		return LineageRunResult{}, fmt.Errorf("generations must be >= 0")
	}
	logger := loggerOrDiscard(cfg.Logger)
	if cfg.Engine.Source == nil {
		cfg.Engine.Source = evo.NewSource(cfg.Seed)
	}
	stride := cfg.SampleEvery
	if stride <= 0 {
		stride = 1
	}

	sim, err := evo.NewWrightFisherSim(cfg.Engine)
	if err != nil {
		return LineageRunResult{}, err
	}
	logger.Info("lineage run started",
		"n", cfg.Engine.N,
		"mu", cfg.Engine.Mu,
		"arrival_rate", sim.MutationArrivalRate(),
		"generations", cfg.Generations,
	)

	var result LineageRunResult
	for gen := 0; gen < cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return LineageRunResult{}, err
		}
		simulated := sim.Generation()
		if err := sim.NextGen(); err != nil {
			return LineageRunResult{}, fmt.Errorf("generation %d: %w", simulated, err)
		}

		diag := sim.Diagnostics()
		if diag.Mutated {
			result.Attempts++
			if diag.Fixed {
				result.Fixed++
			}
			result.Fixations = append(result.Fixations, model.FixationEvent{
				VersionedRecord:      storage.CurrentVersion(),
				Generation:           simulated,
				ParamsMutated:        diag.ParamsMutated,
				CandidateFitness:     diag.CandidateFitness,
				SelectionCoefficient: diag.SelectionCoefficient,
				FixationProbability:  diag.FixationProbability,
				Fixed:                diag.Fixed,
			})
			logger.Debug("mutation attempt",
				"generation", simulated,
				"params", diag.ParamsMutated,
				"s", diag.SelectionCoefficient,
				"p_fix", diag.FixationProbability,
				"fixed", diag.Fixed,
			)
		}
		if gen%stride == 0 || gen == cfg.Generations-1 {
			result.Trajectory = append(result.Trajectory, model.LineageSample{
				Generation: simulated,
				Fitness:    sim.Fitness(),
				Params:     sim.Params(),
			})
		}
	}

	result.FinalFitness = sim.Fitness()
	result.FinalParams = sim.Params()
	logger.Info("lineage run finished",
		"generation", sim.Generation(),
		"attempts", result.Attempts,
		"fixed", result.Fixed,
		"fitness", result.FinalFitness,
	)
	return result, nil
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
