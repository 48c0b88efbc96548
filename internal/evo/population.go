package evo

import (
	"errors"
	"fmt"
	"math"

	"evophys/internal/biophys"
)

// Individual pairs an immutable model with the fitness the engine assigned
// to it. Params caches Model.Params().
type Individual struct {
	Model   biophys.Model
	Params  biophys.ParameterMap
	Fitness float64
}

func (ind Individual) clone() Individual {
	ind.Params = ind.Params.Clone()
	return ind
}

type PopulationConfig struct {
	Constructor       biophys.Constructor
	Defaults          biophys.ParameterMap
	Mutable           []string
	N                 int
	Dt                float64
	SelectionStrength float64
	MutateAll         bool
	StartRandom       bool
	Bounds            map[string]biophys.Bounds
	Source            Source
}

// PhysPopulation is a discrete-generation Wright-Fisher genetic algorithm
// over N candidate models. It is not safe for concurrent use.
type PhysPopulation struct {
	cfg        PopulationConfig
	src        Source
	mutation   Brownian
	target     []float64
	population []Individual
	stats      Statistics
	generation int
}

func NewPhysPopulation(cfg PopulationConfig) (*PhysPopulation, error) {
	if cfg.Constructor == nil {
		return nil, fmt.Errorf("%w: model constructor is required", ErrInvalidConfig)
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if cfg.N <= 0 {
		return nil, fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	}
	if cfg.Dt < 0 {
		return nil, fmt.Errorf("%w: dt must be >= 0", ErrInvalidConfig)
	}

	reference, err := cfg.Constructor(cfg.Defaults.Clone())
	if err != nil {
		return nil, fmt.Errorf("build reference model: %w", err)
	}
	refParams := reference.Params()
	for _, name := range cfg.Mutable {
		if !refParams.Has(name) {
			return nil, fmt.Errorf("%w: %s not found in supplied model", ErrUnknownParameter, name)
		}
	}
	if cfg.StartRandom {
		for _, name := range refParams.Names() {
			b, ok := cfg.Bounds[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingBounds, name)
			}
			if err := b.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
			}
		}
	}

	p := &PhysPopulation{
		cfg: cfg,
		src: cfg.Source,
		mutation: Brownian{
			Mutable:   append([]string(nil), cfg.Mutable...),
			MutateAll: cfg.MutateAll,
			Dt:        cfg.Dt,
		},
		target: reference.Output(),
	}

	initial := make([]Individual, cfg.N)
	for i := range initial {
		params := refParams.Clone()
		if cfg.StartRandom {
			for _, name := range refParams.Names() {
				b := cfg.Bounds[name]
				params[name] = p.src.Uniform(b.Lower, b.Upper)
			}
		}
		ind, err := p.evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("initialize individual %d: %w", i, err)
		}
		initial[i] = ind
	}
	p.commit(initial)
	return p, nil
}

func (p *PhysPopulation) evaluate(params biophys.ParameterMap) (Individual, error) {
	m, err := p.cfg.Constructor(params)
	if err != nil {
		return Individual{}, err
	}
	w, err := Fitness(p.target, m.Output(), p.cfg.SelectionStrength)
	if err != nil {
		return Individual{}, err
	}
	return Individual{Model: m, Params: m.Params(), Fitness: w}, nil
}

func (p *PhysPopulation) commit(next []Individual) {
	p.population = next
	p.stats = ComputeStatistics(next)
}

// Procreate replaces every individual with a mutated offspring. Nothing is
// committed if any offspring fails to build or score.
func (p *PhysPopulation) Procreate() error {
	next := make([]Individual, len(p.population))
	for i, parent := range p.population {
		params, _, err := p.mutation.Step(p.src, parent.Params)
		if err != nil {
			return fmt.Errorf("mutate individual %d: %w", i, err)
		}
		child, err := p.evaluate(params)
		if err != nil {
			return fmt.Errorf("evaluate individual %d: %w", i, err)
		}
		next[i] = child
	}
	p.commit(next)
	return nil
}

// Select draws N individuals with replacement, proportional to fitness.
func (p *PhysPopulation) Select() error {
	weights := make([]float64, len(p.population))
	var sum float64
	for i, ind := range p.population {
		weights[i] = ind.Fitness
		sum += ind.Fitness
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("%w: sum=%g", ErrZeroFitness, sum)
	}
	for i := range weights {
		weights[i] /= sum
	}

	picks, err := p.src.Resample(weights, p.cfg.N)
	if err != nil {
		return err
	}
	if len(picks) != p.cfg.N {
		return fmt.Errorf("resample returned %d picks, want %d", len(picks), p.cfg.N)
	}
	next := make([]Individual, p.cfg.N)
	for i, idx := range picks {
		if idx < 0 || idx >= len(p.population) {
			return fmt.Errorf("resample index out of range: %d", idx)
		}
		next[i] = p.population[idx]
	}
	p.commit(next)
	return nil
}

// Step runs Procreate then Select and advances the generation counter.
func (p *PhysPopulation) Step() error {
	if err := p.Procreate(); err != nil {
		return err
	}
	if err := p.Select(); err != nil {
		return err
	}
	p.generation++
	return nil
}

// Population returns a copy of the current population.
func (p *PhysPopulation) Population() []Individual {
	out := make([]Individual, len(p.population))
	for i, ind := range p.population {
		out[i] = ind.clone()
	}
	return out
}

func (p *PhysPopulation) Target() []float64 {
	return append([]float64(nil), p.target...)
}

func (p *PhysPopulation) Statistics() Statistics {
	return cloneStatistics(p.stats)
}

func (p *PhysPopulation) N() int {
	return p.cfg.N
}

// Generation counts completed Step calls.
func (p *PhysPopulation) Generation() int {
	return p.generation
}

// Best returns the fittest individual; ties keep the earliest.
func (p *PhysPopulation) Best() (Individual, error) {
	if len(p.population) == 0 {
		return Individual{}, errors.New("population is empty")
	}
	best := p.population[0]
	for _, ind := range p.population[1:] {
		if ind.Fitness > best.Fitness {
			best = ind
		}
	}
	return best.clone(), nil
}
