package evo

import (
	"fmt"
	"math"

	"evophys/internal/biophys"
)

const (
	DefaultLineageSize              = 10e5
	DefaultMutationRate             = 10e-5
	DefaultDt                       = 10
	DefaultLineageSelectionStrength = 0.1
)

type LineageConfig struct {
	Constructor       biophys.Constructor
	Defaults          biophys.ParameterMap
	N                 float64
	Mu                float64
	Dt                float64
	SelectionStrength float64
	Source            Source
}

// MutationDiagnostics describes the mutation attempt of the most recent
// generation. It is overwritten on every NextGen call.
type MutationDiagnostics struct {
	Mutated              bool     `json:"mutated"`
	NumParamsMutated     int      `json:"num_params_mutated"`
	ParamsMutated        []string `json:"params_mutated,omitempty"`
	CandidateFitness     float64  `json:"candidate_fitness"`
	SelectionCoefficient float64  `json:"selection_coefficient"`
	FixationProbability  float64  `json:"fixation_probability"`
	Fixed                bool     `json:"fixed"`
}

// WrightFisherSim follows a single lineage under strong selection and weak
// mutation. Mutations arrive after Exp(4*N*mu) generations and fix with
// Kimura's probability. It is not safe for concurrent use.
type WrightFisherSim struct {
	cfg    LineageConfig
	src    Source
	target []float64

	params  biophys.ParameterMap
	output  []float64
	fitness float64

	generation        int
	gensSinceMutation int
	waitGens          float64
	scheduled         bool

	diag MutationDiagnostics
}

func NewWrightFisherSim(cfg LineageConfig) (*WrightFisherSim, error) {
	if cfg.Constructor == nil {
		return nil, fmt.Errorf("%w: model constructor is required", ErrInvalidConfig)
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if cfg.N < 1 || math.IsInf(cfg.N, 0) {
		return nil, fmt.Errorf("%w: population size must be >= 1", ErrInvalidConfig)
	}
	if cfg.Mu <= 0 {
		return nil, fmt.Errorf("%w: mutation rate must be > 0", ErrInvalidConfig)
	}
	if cfg.Dt < 0 {
		return nil, fmt.Errorf("%w: dt must be >= 0", ErrInvalidConfig)
	}

	reference, err := cfg.Constructor(cfg.Defaults.Clone())
	if err != nil {
		return nil, fmt.Errorf("build reference model: %w", err)
	}
	params := reference.Params()
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: model has no parameters to mutate", ErrInvalidConfig)
	}
	target := reference.Output()

	return &WrightFisherSim{
		cfg:               cfg,
		src:               cfg.Source,
		target:            target,
		params:            params,
		output:            append([]float64(nil), target...),
		fitness:           1,
		generation:        1,
		gensSinceMutation: 1,
	}, nil
}

// MutationArrivalRate is 4*N*mu, the rate of the exponential waiting time
// between mutation attempts.
func (w *WrightFisherSim) MutationArrivalRate() float64 {
	return 4 * w.cfg.N * w.cfg.Mu
}

// NextGen advances the lineage by one generation. A failed attempt leaves
// the lineage as it was.
func (w *WrightFisherSim) NextGen() error {
	waitGens := w.waitGens
	if !w.scheduled {
		waitGens = w.src.Exponential(w.MutationArrivalRate())
	}

	if waitGens > float64(w.gensSinceMutation) {
		w.waitGens = waitGens
		w.scheduled = true
		w.diag = MutationDiagnostics{}
		w.gensSinceMutation++
		w.generation++
		return nil
	}

	diag, candidate, err := w.attempt()
	if err != nil {
		return err
	}
	if diag.Fixed {
		w.params = candidate.Params()
		w.output = candidate.Output()
		w.fitness = diag.CandidateFitness
	}
	w.diag = diag
	w.waitGens = w.src.Exponential(w.MutationArrivalRate())
	w.scheduled = true
	w.gensSinceMutation = 1
	w.generation++
	return nil
}

func (w *WrightFisherSim) attempt() (MutationDiagnostics, biophys.Model, error) {
	names := w.params.Names()
	k := w.src.IntN(len(names)) + 1
	picks := w.src.Sample(len(names), k)
	chosen := make([]string, 0, len(picks))
	for _, idx := range picks {
		if idx < 0 || idx >= len(names) {
			return MutationDiagnostics{}, nil, fmt.Errorf("sample index out of range: %d", idx)
		}
		chosen = append(chosen, names[idx])
	}

	candidateParams := PerturbNames(w.src, w.params, chosen, w.cfg.Dt)
	candidate, err := w.cfg.Constructor(candidateParams)
	if err != nil {
		return MutationDiagnostics{}, nil, fmt.Errorf("build candidate: %w", err)
	}
	wc, err := Fitness(w.target, candidate.Output(), w.cfg.SelectionStrength)
	if err != nil {
		return MutationDiagnostics{}, nil, err
	}
	s, err := SelectionCoefficient(wc, w.fitness)
	if err != nil {
		return MutationDiagnostics{}, nil, err
	}
	pFix, err := FixationProbability(s, w.cfg.N)
	if err != nil {
		return MutationDiagnostics{}, nil, err
	}

	return MutationDiagnostics{
		Mutated:              true,
		NumParamsMutated:     len(chosen),
		ParamsMutated:        chosen,
		CandidateFitness:     wc,
		SelectionCoefficient: s,
		FixationProbability:  pFix,
		Fixed:                w.src.Float64() < pFix,
	}, candidate, nil
}

// Generation is the 1-based index of the next generation to simulate.
func (w *WrightFisherSim) Generation() int {
	return w.generation
}

func (w *WrightFisherSim) Fitness() float64 {
	return w.fitness
}

func (w *WrightFisherSim) Params() biophys.ParameterMap {
	return w.params.Clone()
}

func (w *WrightFisherSim) Output() []float64 {
	return append([]float64(nil), w.output...)
}

func (w *WrightFisherSim) Target() []float64 {
	return append([]float64(nil), w.target...)
}

// GensSinceMutation counts generations elapsed since the last mutation
// attempt, starting at 1.
func (w *WrightFisherSim) GensSinceMutation() int {
	return w.gensSinceMutation
}

// ScheduledWait is the drawn waiting time until the next mutation attempt;
// zero before the first NextGen call.
func (w *WrightFisherSim) ScheduledWait() float64 {
	return w.waitGens
}

func (w *WrightFisherSim) Diagnostics() MutationDiagnostics {
	d := w.diag
	d.ParamsMutated = append([]string(nil), w.diag.ParamsMutated...)
	return d
}
