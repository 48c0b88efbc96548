package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"evophys/internal/model"
)

const runIndexFile = "run_index.json"

const (
	configFile    = "config.json"
	historyFile   = "history.json"
	historyCSV    = "history.csv"
	fixationsFile = "fixations.json"
)

type RunArtifacts struct {
	Record            model.RunRecord
	PopulationHistory []model.PopulationGeneration
	LineageTrajectory []model.LineageSample
	Fixations         []model.FixationEvent
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Engine         string  `json:"engine"`
	Model          string  `json:"model"`
	PopulationSize float64 `json:"population_size"`
	Generations    int     `json:"generations"`
	Seed           uint64  `json:"seed"`
	FinalFitness   float64 `json:"final_fitness"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

func IndexEntryFor(record model.RunRecord) RunIndexEntry {
	return RunIndexEntry{
		RunID:          record.ID,
		Engine:         record.Engine,
		Model:          record.Model,
		PopulationSize: record.PopulationSize,
		Generations:    record.Generations,
		Seed:           record.Seed,
		FinalFitness:   record.FinalFitness,
		CreatedAtUTC:   record.CreatedAtUTC,
	}
}

// WriteRunArtifacts writes one directory per run under baseDir and returns
// its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Record.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Record.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Record); err != nil {
		return "", err
	}

	switch artifacts.Record.Engine {
	case model.EnginePopulation:
		if err := writeJSON(filepath.Join(runDir, historyFile), artifacts.PopulationHistory); err != nil {
			return "", err
		}
		if err := writeCSV(filepath.Join(runDir, historyCSV), func(w io.Writer) error {
			return WritePopulationCSV(w, artifacts.PopulationHistory)
		}); err != nil {
			return "", err
		}
	case model.EngineLineage:
		if err := writeJSON(filepath.Join(runDir, historyFile), artifacts.LineageTrajectory); err != nil {
			return "", err
		}
		if err := writeCSV(filepath.Join(runDir, historyCSV), func(w io.Writer) error {
			return WriteLineageCSV(w, artifacts.LineageTrajectory)
		}); err != nil {
			return "", err
		}
		if err := writeJSON(filepath.Join(runDir, fixationsFile), artifacts.Fixations); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported engine: %q", artifacts.Record.Engine)
	}

	return runDir, nil
}

// WritePopulationCSV writes one row per generation with fitness moments and
// per-parameter means and variances.
func WritePopulationCSV(w io.Writer, history []model.PopulationGeneration) error {
	var names []string
	if len(history) > 0 {
		names = sortedKeys(history[0].ParamMeans)
	}

	writer := csv.NewWriter(w)
	header := []string{"generation", "mean_fitness", "fitness_variance", "best_fitness"}
	for _, name := range names {
		header = append(header, "mean_"+name, "var_"+name)
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, gen := range history {
		row := []string{
			strconv.Itoa(gen.Generation),
			formatFloat(gen.MeanFitness),
			formatFloat(gen.FitnessVar),
			formatFloat(gen.BestFitness),
		}
		for _, name := range names {
			row = append(row, formatFloat(gen.ParamMeans[name]), formatFloat(gen.ParamVariances[name]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteLineageCSV(w io.Writer, samples []model.LineageSample) error {
	var names []string
	if len(samples) > 0 {
		names = sortedKeys(samples[0].Params)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{"generation", "fitness"}, names...)); err != nil {
		return err
	}
	for _, sample := range samples {
		row := []string{strconv.Itoa(sample.Generation), formatFloat(sample.Fitness)}
		for _, name := range names {
			row = append(row, formatFloat(sample.Params[name]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadRunRecord(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var record model.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.RunRecord{}, false, err
	}
	return record, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Entries with equal
// timestamps keep the later-appended one first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory's files into outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, historyFile, historyCSV, fixationsFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeCSV(path string, fill func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return fill(file)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// ReadRunHistory decodes a run's history.json into out.
func ReadRunHistory(baseDir, runID string, out any) (bool, error) {
	return readRunJSON(filepath.Join(baseDir, runID, historyFile), out)
}

// ReadRunFixations decodes a lineage run's fixations.json.
func ReadRunFixations(baseDir, runID string) ([]model.FixationEvent, bool, error) {
	var events []model.FixationEvent
	ok, err := readRunJSON(filepath.Join(baseDir, runID, fixationsFile), &events)
	return events, ok, err
}

func readRunJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}
