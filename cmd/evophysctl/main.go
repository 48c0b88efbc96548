package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"evophys/internal/biophys"
	"evophys/internal/model"
	"evophys/internal/storage"
	api "evophys/pkg/evophys"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "population":
		return runPopulation(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "fixations":
		return runFixations(ctx, args[1:])
	case "models":
		return runModels(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	logLevel     *string
	logJSON      *bool
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", "evophys.db", "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", artifactsDir, "run artifacts directory"),
		logLevel:     fs.String("log-level", "info", "log level: debug|info|warn|error"),
		logJSON:      fs.Bool("log-json", false, "emit logs as JSON"),
	}
}

func (f clientFlags) open(exports string) (*api.Client, error) {
	logger, err := newLogger(*f.logLevel, *f.logJSON)
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   exports,
		Logger:       logger,
	})
}

func newLogger(level string, jsonOut bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(stderr, opts)), nil
}

func runPopulation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("population", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional population config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	modelName := fs.String("model", "adair", "biophysical model: "+strings.Join(biophys.Names(), "|"))
	population := fs.Int("pop", 100, "population size")
	generations := fs.Int("gens", 100, "generation count")
	dt := fs.Float64("dt", 10, "mutation time step; perturbation sd is 2*dt")
	selectionStrength := fs.Float64("selection-strength", 1, "selection strength")
	mutateSingle := fs.Bool("mutate-single", false, "perturb one random mutable parameter per offspring")
	startRandom := fs.Bool("start-random", false, "draw initial parameters uniformly within bounds")
	fitnessGoal := fs.Float64("fitness-goal", 0, "early-stop mean fitness goal (0 disables)")
	seed := fs.Uint64("seed", 1, "rng seed")
	mutable := fs.String("mutable", "", "comma separated mutable parameter names (default all)")
	params := paramsFlag{}
	fs.Var(params, "param", "parameter override name=value (repeatable)")
	bounds := boundsFlag{}
	fs.Var(bounds, "bounds", "initial bounds name=lower:upper (repeatable)")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	var req api.PopulationRequest
	if *configPath == "" {
		req = api.PopulationRequest{
			RunID:             *runID,
			Model:             *modelName,
			N:                 *population,
			Generations:       *generations,
			Dt:                dt,
			SelectionStrength: selectionStrength,
			MutateSingle:      *mutateSingle,
			StartRandom:       *startRandom,
			FitnessGoal:       *fitnessGoal,
			Seed:              *seed,
		}
	} else {
		loaded, err := loadPopulationRequestFromConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		req = loaded
		overridePopulationFromFlags(&req, setFlags, map[string]any{
			"run-id":             *runID,
			"model":              *modelName,
			"pop":                *population,
			"gens":               *generations,
			"dt":                 *dt,
			"selection-strength": *selectionStrength,
			"mutate-single":      *mutateSingle,
			"start-random":       *startRandom,
			"fitness-goal":       *fitnessGoal,
			"seed":               *seed,
		})
	}
	if *mutable != "" {
		req.Mutable = splitNames(*mutable)
	}
	if len(params) > 0 {
		req.Params = mergeFloatMap(req.Params, params)
	}
	if len(bounds) > 0 {
		if req.Bounds == nil {
			req.Bounds = map[string]biophys.Bounds{}
		}
		for name, b := range bounds {
			req.Bounds[name] = b
		}
	}

	client, err := common.open(exportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunPopulation(ctx, req)
	if err != nil {
		return err
	}
	return printSummary(summary, *jsonOut)
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional lineage config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	modelName := fs.String("model", "adair", "biophysical model: "+strings.Join(biophys.Names(), "|"))
	n := fs.Float64("n", 10e5, "effective population size")
	mu := fs.Float64("mu", 10e-5, "per-generation mutation rate")
	dt := fs.Float64("dt", 10, "mutation time step; perturbation sd is 2*dt")
	selectionStrength := fs.Float64("selection-strength", 0.1, "selection strength")
	generations := fs.Int("gens", 1000, "generation count")
	sampleEvery := fs.Int("sample-every", 1, "record every n-th generation of the trajectory")
	seed := fs.Uint64("seed", 1, "rng seed")
	params := paramsFlag{}
	fs.Var(params, "param", "parameter override name=value (repeatable)")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	var req api.LineageRequest
	if *configPath == "" {
		req = api.LineageRequest{
			RunID:             *runID,
			Model:             *modelName,
			N:                 *n,
			Mu:                *mu,
			Dt:                dt,
			SelectionStrength: selectionStrength,
			Generations:       *generations,
			SampleEvery:       *sampleEvery,
			Seed:              *seed,
		}
	} else {
		loaded, err := loadLineageRequestFromConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		req = loaded
		overrideLineageFromFlags(&req, setFlags, map[string]any{
			"run-id":             *runID,
			"model":              *modelName,
			"n":                  *n,
			"mu":                 *mu,
			"dt":                 *dt,
			"selection-strength": *selectionStrength,
			"gens":               *generations,
			"sample-every":       *sampleEvery,
			"seed":               *seed,
		})
	}
	if len(params) > 0 {
		req.Params = mergeFloatMap(req.Params, params)
	}

	client, err := common.open(exportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunLineage(ctx, req)
	if err != nil {
		return err
	}
	return printSummary(summary, *jsonOut)
}

func printSummary(summary api.RunSummary, jsonOut bool) error {
	if jsonOut {
		type summaryItem struct {
			RunID        string             `json:"run_id"`
			Engine       string             `json:"engine"`
			ArtifactsDir string             `json:"artifacts_dir"`
			Generations  int                `json:"generations"`
			FinalFitness float64            `json:"final_fitness"`
			FinalParams  map[string]float64 `json:"final_params"`
			MeanFitness  float64            `json:"mean_fitness"`
			StdFitness   float64            `json:"std_fitness"`
			GoalReached  bool               `json:"goal_reached,omitempty"`
			Attempts     int                `json:"attempts,omitempty"`
			Fixed        int                `json:"fixed,omitempty"`
		}
		return writeJSON(summaryItem{
			RunID:        summary.RunID,
			Engine:       summary.Engine,
			ArtifactsDir: summary.ArtifactsDir,
			Generations:  summary.Generations,
			FinalFitness: summary.FinalFitness,
			FinalParams:  summary.FinalParams,
			MeanFitness:  summary.Fitness.Mean,
			StdFitness:   summary.Fitness.Std,
			GoalReached:  summary.GoalReached,
			Attempts:     summary.Attempts,
			Fixed:        summary.Fixed,
		})
	}

	fmt.Fprintf(stdout, "run_id=%s engine=%s generations=%d final_fitness=%.6f params=%s artifacts=%s\n",
		summary.RunID,
		summary.Engine,
		summary.Generations,
		summary.FinalFitness,
		formatParams(summary.FinalParams),
		summary.ArtifactsDir,
	)
	if summary.Engine == model.EngineLineage {
		fmt.Fprintf(stdout, "mutation_attempts=%d fixed=%d\n", summary.Attempts, summary.Fixed)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	engine := fs.String("engine", "", "filter by engine: population|lineage")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.open(exportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	entries, err := client.Runs(ctx, api.RunsRequest{Limit: *limit, Engine: *engine})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s engine=%s model=%s seed=%d n=%g gens=%d final_fitness=%.6f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Engine,
			e.Model,
			e.Seed,
			e.PopulationSize,
			e.Generations,
			e.FinalFitness,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to show (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open(exportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := api.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit}
	record, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	req = api.HistoryRequest{RunID: record.ID, Limit: *limit}

	if record.Engine == model.EngineLineage {
		samples, err := client.LineageTrajectory(ctx, req)
		if err != nil {
			return err
		}
		if *jsonOut {
			return writeJSON(samples)
		}
		for _, s := range samples {
			fmt.Fprintf(stdout, "generation=%d fitness=%.6f params=%s\n", s.Generation, s.Fitness, formatParams(s.Params))
		}
		return nil
	}

	history, err := client.PopulationHistory(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for _, g := range history {
		fmt.Fprintf(stdout, "generation=%d mean_fitness=%.6f fitness_var=%.6g best_fitness=%.6f params=%s\n",
			g.Generation,
			g.MeanFitness,
			g.FitnessVar,
			g.BestFitness,
			formatParams(g.ParamMeans),
		)
	}
	return nil
}

func runFixations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fixations", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	limit := fs.Int("limit", 0, "max events to show (0 shows all)")
	fixedOnly := fs.Bool("fixed-only", false, "show only mutations that fixed")
	jsonOut := fs.Bool("json", false, "emit events as JSON")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open(exportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	events, err := client.Fixations(ctx, api.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *fixedOnly {
		kept := events[:0]
		for _, e := range events {
			if e.Fixed {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	if *jsonOut {
		return writeJSON(events)
	}
	for _, e := range events {
		fmt.Fprintf(stdout, "generation=%d mutated=%s candidate_fitness=%.6f s=%.6g p_fix=%.6g fixed=%t\n",
			e.Generation,
			strings.Join(e.ParamsMutated, ","),
			e.CandidateFitness,
			e.SelectionCoefficient,
			e.FixationProbability,
			e.Fixed,
		)
	}
	return nil
}

func runModels(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit models as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items := client.Models()
	if *jsonOut {
		return writeJSON(items)
	}
	for _, item := range items {
		fmt.Fprintf(stdout, "model=%s defaults=%s description=%q\n", item.Name, formatParams(item.Defaults), item.Description)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := common.open(*outDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evophysctl <population|lineage|runs|history|fixations|models|export> [flags]", msg)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+strconv.FormatFloat(params[name], 'g', 6, 64))
	}
	return strings.Join(parts, ",")
}

func splitNames(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mergeFloatMap(base, overrides map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// paramsFlag collects repeated name=value flags.
type paramsFlag map[string]float64

func (p paramsFlag) String() string {
	return formatParams(p)
}

func (p paramsFlag) Set(value string) error {
	name, raw, ok := strings.Cut(value, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	p[name] = v
	return nil
}

// boundsFlag collects repeated name=lower:upper flags.
type boundsFlag map[string]biophys.Bounds

func (b boundsFlag) String() string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g:%g", name, b[name].Lower, b[name].Upper))
	}
	return strings.Join(parts, ",")
}

func (b boundsFlag) Set(value string) error {
	name, raw, ok := strings.Cut(value, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=lower:upper, got %q", value)
	}
	loRaw, hiRaw, ok := strings.Cut(raw, ":")
	if !ok {
		return fmt.Errorf("expected name=lower:upper, got %q", value)
	}
	lo, err := strconv.ParseFloat(loRaw, 64)
	if err != nil {
		return fmt.Errorf("parse %s lower bound: %w", name, err)
	}
	hi, err := strconv.ParseFloat(hiRaw, 64)
	if err != nil {
		return fmt.Errorf("parse %s upper bound: %w", name, err)
	}
	b[name] = biophys.Bounds{Lower: lo, Upper: hi}
	return nil
}
