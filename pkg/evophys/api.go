package evophys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"evophys/internal/biophys"
	"evophys/internal/evo"
	"evophys/internal/model"
	"evophys/internal/runner"
	"evophys/internal/stats"
	"evophys/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "evophys.db"

	defaultPopulationSize        = 100
	defaultPopulationGenerations = 100
	defaultPopulationDt          = 10
	defaultPopulationStrength    = 1
	defaultLineageGenerations    = 1000
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir string
	exportsDir   string
	logger       *slog.Logger
	now          func() time.Time
}

type PopulationRequest struct {
	RunID string
	Model string
	// Params override the model defaults by name.
	Params            map[string]float64
	Mutable           []string
	N           int
	Generations int
	// Dt and SelectionStrength use the defaults when nil; an explicit zero
	// is honoured (dt=0 freezes parameters, strength 0 is neutral drift).
	Dt                *float64
	SelectionStrength *float64
	// MutateSingle perturbs one random mutable parameter per offspring
	// instead of all of them.
	MutateSingle bool
	StartRandom  bool
	Bounds       map[string]biophys.Bounds
	FitnessGoal  float64
	Seed         uint64
}

type LineageRequest struct {
	RunID             string
	Model             string
	Params            map[string]float64
	N                 float64
	Mu                float64
	Dt                *float64
	SelectionStrength *float64
	Generations       int
	SampleEvery       int
	Seed              uint64
}

type RunSummary struct {
	RunID        string
	Engine       string
	ArtifactsDir string
	Generations  int
	FinalFitness float64
	FinalParams  map[string]float64
	Fitness      stats.TrajectorySummary
	GoalReached  bool
	Attempts     int
	Fixed        int
}

type RunsRequest struct {
	Limit  int
	Engine string
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ModelItem struct {
	Name        string
	Description string
	Defaults    map[string]float64
	Bounds      map[string]biophys.Bounds
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Models lists the bundled biophysical models.
func (c *Client) Models() []ModelItem {
	out := make([]ModelItem, 0, len(biophys.Names()))
	for _, name := range biophys.Names() {
		spec, err := biophys.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, ModelItem{
			Name:        spec.Name,
			Description: spec.Description,
			Defaults:    spec.Defaults,
			Bounds:      spec.Bounds,
		})
	}
	return out
}

func (c *Client) RunPopulation(ctx context.Context, req PopulationRequest) (RunSummary, error) {
	if req.Model == "" {
		req.Model = "adair"
	}
	if req.N <= 0 {
		req.N = defaultPopulationSize
	}
	if req.Generations <= 0 {
		req.Generations = defaultPopulationGenerations
	}
	dt, strength, err := resolveRates(req.Dt, req.SelectionStrength, defaultPopulationDt, defaultPopulationStrength)
	if err != nil {
		return RunSummary{}, err
	}

	spec, defaults, err := resolveModel(req.Model, req.Params)
	if err != nil {
		return RunSummary{}, err
	}
	mutable := req.Mutable
	if len(mutable) == 0 {
		mutable = defaults.Names()
	}
	bounds := req.Bounds
	if req.StartRandom && len(bounds) == 0 {
		bounds = spec.Bounds
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := c.newRunID(model.EnginePopulation, req.RunID)
	logger := c.logger.With("run_id", runID, "engine", model.EnginePopulation, "model", spec.Name)
	result, err := runner.RunPopulation(ctx, runner.PopulationRunConfig{
		Engine: evo.PopulationConfig{
			Constructor:       spec.Constructor,
			Defaults:          defaults,
			Mutable:           mutable,
			N:                 req.N,
			Dt:                dt,
			SelectionStrength: strength,
			MutateAll:         !req.MutateSingle,
			StartRandom:       req.StartRandom,
			Bounds:            bounds,
		},
		Seed:        req.Seed,
		Generations: req.Generations,
		FitnessGoal: req.FitnessGoal,
		Logger:      logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	record := model.RunRecord{
		VersionedRecord:   storage.CurrentVersion(),
		ID:                runID,
		Engine:            model.EnginePopulation,
		Model:             spec.Name,
		CreatedAtUTC:      c.now().UTC().Format(time.RFC3339Nano),
		Seed:              req.Seed,
		Generations:       result.Generations,
		PopulationSize:    float64(req.N),
		Dt:                dt,
		SelectionStrength: strength,
		MutateAll:         !req.MutateSingle,
		StartRandom:       req.StartRandom,
		Mutable:           mutable,
		Defaults:          defaults,
		FinalFitness:      result.Final.MeanFitness,
		FinalParams:       result.Final.ParamMeans,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SavePopulationHistory(ctx, runID, result.History); err != nil {
		return RunSummary{}, err
	}
	runDir, err := c.writeArtifacts(stats.RunArtifacts{Record: record, PopulationHistory: result.History})
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		Engine:       model.EnginePopulation,
		ArtifactsDir: runDir,
		Generations:  result.Generations,
		FinalFitness: record.FinalFitness,
		FinalParams:  record.FinalParams,
		Fitness:      stats.SummarizeTrajectory(stats.MeanFitnessSeries(result.History)),
		GoalReached:  result.GoalReached,
	}, nil
}

func (c *Client) RunLineage(ctx context.Context, req LineageRequest) (RunSummary, error) {
	if req.Model == "" {
		req.Model = "adair"
	}
	if req.N <= 0 {
		req.N = evo.DefaultLineageSize
	}
	if req.Mu <= 0 {
		req.Mu = evo.DefaultMutationRate
	}
	dt, strength, err := resolveRates(req.Dt, req.SelectionStrength, evo.DefaultDt, evo.DefaultLineageSelectionStrength)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Generations <= 0 {
		req.Generations = defaultLineageGenerations
	}

	spec, defaults, err := resolveModel(req.Model, req.Params)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := c.newRunID(model.EngineLineage, req.RunID)
	logger := c.logger.With("run_id", runID, "engine", model.EngineLineage, "model", spec.Name)
	result, err := runner.RunLineage(ctx, runner.LineageRunConfig{
		Engine: evo.LineageConfig{
			Constructor:       spec.Constructor,
			Defaults:          defaults,
			N:                 req.N,
			Mu:                req.Mu,
			Dt:                dt,
			SelectionStrength: strength,
		},
		Seed:        req.Seed,
		Generations: req.Generations,
		SampleEvery: req.SampleEvery,
		Logger:      logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	record := model.RunRecord{
		VersionedRecord:   storage.CurrentVersion(),
		ID:                runID,
		Engine:            model.EngineLineage,
		Model:             spec.Name,
		CreatedAtUTC:      c.now().UTC().Format(time.RFC3339Nano),
		Seed:              req.Seed,
		Generations:       req.Generations,
		PopulationSize:    req.N,
		MutationRate:      req.Mu,
		Dt:                dt,
		SelectionStrength: strength,
		Defaults:          defaults,
		FinalFitness:      result.FinalFitness,
		FinalParams:       result.FinalParams,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveLineageTrajectory(ctx, runID, result.Trajectory); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveFixations(ctx, runID, result.Fixations); err != nil {
		return RunSummary{}, err
	}
	runDir, err := c.writeArtifacts(stats.RunArtifacts{
		Record:            record,
		LineageTrajectory: result.Trajectory,
		Fixations:         result.Fixations,
	})
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		Engine:       model.EngineLineage,
		ArtifactsDir: runDir,
		Generations:  req.Generations,
		FinalFitness: result.FinalFitness,
		FinalParams:  result.FinalParams,
		Fitness:      stats.SummarizeTrajectory(stats.LineageFitnessSeries(result.Trajectory)),
		Attempts:     result.Attempts,
		Fixed:        result.Fixed,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	out := make([]stats.RunIndexEntry, 0, len(entries))
	for _, e := range entries {
		if req.Engine != "" && e.Engine != req.Engine {
			continue
		}
		out = append(out, e)
		if len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// Run returns the record of one run, from the store when present and from
// the run's artifacts otherwise.
func (c *Client) Run(ctx context.Context, req HistoryRequest) (model.RunRecord, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, req.Limit)
	if err != nil {
		return model.RunRecord{}, err
	}
	return c.lookupRun(ctx, runID)
}

// PopulationHistory returns per-generation summaries of a population run.
func (c *Client) PopulationHistory(ctx context.Context, req HistoryRequest) ([]model.PopulationGeneration, error) {
	runID, err := c.resolveEngineRun(ctx, req, model.EnginePopulation)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetPopulationHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		ok, err = stats.ReadRunHistory(c.artifactsDir, runID, &history)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("population history not found for run id: %s", runID)
	}
	return limitSlice(history, req.Limit), nil
}

func (c *Client) LineageTrajectory(ctx context.Context, req HistoryRequest) ([]model.LineageSample, error) {
	runID, err := c.resolveEngineRun(ctx, req, model.EngineLineage)
	if err != nil {
		return nil, err
	}
	samples, ok, err := c.store.GetLineageTrajectory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		ok, err = stats.ReadRunHistory(c.artifactsDir, runID, &samples)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("lineage trajectory not found for run id: %s", runID)
	}
	return limitSlice(samples, req.Limit), nil
}

func (c *Client) Fixations(ctx context.Context, req HistoryRequest) ([]model.FixationEvent, error) {
	runID, err := c.resolveEngineRun(ctx, req, model.EngineLineage)
	if err != nil {
		return nil, err
	}
	events, ok, err := c.store.GetFixations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		events, ok, err = stats.ReadRunFixations(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fixations not found for run id: %s", runID)
	}
	return limitSlice(events, req.Limit), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest, 0)
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) writeArtifacts(artifacts stats.RunArtifacts) (string, error) {
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, artifacts)
	if err != nil {
		return "", err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.IndexEntryFor(artifacts.Record)); err != nil {
		return "", err
	}
	return runDir, nil
}

func (c *Client) newRunID(engine, requested string) string {
	if requested != "" {
		return requested
	}
	return engine + "-" + uuid.NewString()
}

func (c *Client) resolveRunID(runID string, latest bool, limit int) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

func (c *Client) lookupRun(ctx context.Context, runID string) (model.RunRecord, error) {
	if err := c.ensureStore(ctx); err != nil {
		return model.RunRecord{}, err
	}
	record, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		record, ok, err = stats.ReadRunRecord(c.artifactsDir, runID)
		if err != nil {
			return model.RunRecord{}, err
		}
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return record, nil
}

func (c *Client) resolveEngineRun(ctx context.Context, req HistoryRequest, engine string) (string, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, req.Limit)
	if err != nil {
		return "", err
	}
	record, err := c.lookupRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if record.Engine != engine {
		return "", fmt.Errorf("run %s is a %s run, not %s", runID, record.Engine, engine)
	}
	return runID, nil
}

func resolveRates(dt, strength *float64, defaultDt, defaultStrength float64) (float64, float64, error) {
	outDt, outStrength := defaultDt, defaultStrength
	if dt != nil {
		outDt = *dt
	}
	if strength != nil {
		outStrength = *strength
	}
	if outDt < 0 || math.IsNaN(outDt) {
		return 0, 0, fmt.Errorf("%w: dt must be >= 0", evo.ErrInvalidConfig)
	}
	if outStrength < 0 || math.IsNaN(outStrength) {
		return 0, 0, fmt.Errorf("%w: selection strength must be >= 0", evo.ErrInvalidConfig)
	}
	return outDt, outStrength, nil
}

func resolveModel(name string, overrides map[string]float64) (biophys.Spec, biophys.ParameterMap, error) {
	spec, err := biophys.Lookup(name)
	if err != nil {
		return biophys.Spec{}, nil, err
	}
	defaults := spec.Defaults.Clone()
	for k, v := range overrides {
		if !defaults.Has(k) {
			return biophys.Spec{}, nil, fmt.Errorf("%w: %s has no parameter %s", evo.ErrUnknownParameter, name, k)
		}
		defaults[k] = v
	}
	return spec, defaults, nil
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
