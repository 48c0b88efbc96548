package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	EnginePopulation = "population"
	EngineLineage    = "lineage"
)

// RunRecord describes one simulation run and the settings it used.
type RunRecord struct {
	VersionedRecord
	ID                string             `json:"id"`
	Engine            string             `json:"engine"`
	Model             string             `json:"model"`
	CreatedAtUTC      string             `json:"created_at_utc"`
	Seed              uint64             `json:"seed"`
	Generations       int                `json:"generations"`
	PopulationSize    float64            `json:"population_size"`
	MutationRate      float64            `json:"mutation_rate,omitempty"`
	Dt                float64            `json:"dt"`
	SelectionStrength float64            `json:"selection_strength"`
	MutateAll         bool               `json:"mutate_all,omitempty"`
	StartRandom       bool               `json:"start_random,omitempty"`
	Mutable           []string           `json:"mutable,omitempty"`
	Defaults          map[string]float64 `json:"defaults"`
	FinalFitness      float64            `json:"final_fitness"`
	FinalParams       map[string]float64 `json:"final_params,omitempty"`
}

// PopulationGeneration is the population summary after one generation.
type PopulationGeneration struct {
	Generation     int                `json:"generation"`
	MeanFitness    float64            `json:"mean_fitness"`
	FitnessVar     float64            `json:"fitness_variance"`
	BestFitness    float64            `json:"best_fitness"`
	ParamMeans     map[string]float64 `json:"param_means"`
	ParamVariances map[string]float64 `json:"param_variances"`
}

// LineageSample is the lineage state at the end of one generation.
type LineageSample struct {
	Generation int                `json:"generation"`
	Fitness    float64            `json:"fitness"`
	Params     map[string]float64 `json:"params"`
}

// FixationEvent records one mutation attempt of a lineage run.
type FixationEvent struct {
	VersionedRecord
	Generation           int      `json:"generation"`
	ParamsMutated        []string `json:"params_mutated"`
	CandidateFitness     float64  `json:"candidate_fitness"`
	SelectionCoefficient float64  `json:"selection_coefficient"`
	FixationProbability  float64  `json:"fixation_probability"`
	Fixed                bool     `json:"fixed"`
}
