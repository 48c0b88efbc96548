package evophys

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evophys/internal/evo"
	"evophys/internal/model"
	"evophys/internal/stats"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return client, base
}

func TestClientRunPopulationPersistsAndIndexes(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.RunPopulation(ctx, PopulationRequest{
		Model:       "adair",
		N:           12,
		Generations: 3,
		Seed:        7,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EnginePopulation, summary.Engine)
	assert.Equal(t, 3, summary.Generations)
	assert.Contains(t, summary.FinalParams, "K1")
	assert.Contains(t, summary.FinalParams, "K2")
	assert.Equal(t, filepath.Join(base, "runs", summary.RunID), summary.ArtifactsDir)

	_, err = os.Stat(filepath.Join(summary.ArtifactsDir, "history.csv"))
	require.NoError(t, err)

	history, err := client.PopulationHistory(ctx, HistoryRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, 0, history[0].Generation)
	assert.InDelta(t, 1.0, history[0].MeanFitness, 1e-12)

	limited, err := client.PopulationHistory(ctx, HistoryRequest{RunID: summary.RunID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, "adair", runs[0].Model)
}

func TestClientRunLineageRecordsFixations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	summary, err := client.RunLineage(ctx, LineageRequest{
		Model:       "hill",
		Generations: 25,
		Seed:        3,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EngineLineage, summary.Engine)
	assert.Positive(t, summary.Attempts)
	assert.LessOrEqual(t, summary.Fixed, summary.Attempts)

	events, err := client.Fixations(ctx, HistoryRequest{Latest: true})
	require.NoError(t, err)
	assert.Len(t, events, summary.Attempts)

	trajectory, err := client.LineageTrajectory(ctx, HistoryRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.NotEmpty(t, trajectory)
	assert.InDelta(t, summary.FinalFitness, trajectory[len(trajectory)-1].Fitness, 1e-12)
}

func TestClientHistoryFallsBackToArtifacts(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.RunPopulation(ctx, PopulationRequest{N: 5, Generations: 2, Seed: 1})
	require.NoError(t, err)

	fresh, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = fresh.Close()
	})

	history, err := fresh.PopulationHistory(ctx, HistoryRequest{Latest: true})
	require.NoError(t, err)
	assert.Len(t, history, 3)

	_, err = fresh.Fixations(ctx, HistoryRequest{RunID: summary.RunID})
	require.Error(t, err)
}

func TestClientRunsFilterAndLatestExport(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	first, err := client.RunPopulation(ctx, PopulationRequest{N: 4, Generations: 1, Seed: 1})
	require.NoError(t, err)
	second, err := client.RunLineage(ctx, LineageRequest{Generations: 5, Seed: 2})
	require.NoError(t, err)

	all, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.RunID, all[0].RunID)
	assert.Equal(t, first.RunID, all[1].RunID)

	lineageOnly, err := client.Runs(ctx, RunsRequest{Engine: model.EngineLineage})
	require.NoError(t, err)
	require.Len(t, lineageOnly, 1)
	assert.Equal(t, second.RunID, lineageOnly[0].RunID)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, second.RunID, exported.RunID)
	assert.Equal(t, filepath.Join(base, "exports", second.RunID), exported.Directory)
	_, err = os.Stat(filepath.Join(exported.Directory, "fixations.json"))
	require.NoError(t, err)
}

func TestClientRequestValidation(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.RunPopulation(ctx, PopulationRequest{Model: "nope"})
	require.Error(t, err)

	_, err = client.RunLineage(ctx, LineageRequest{Params: map[string]float64{"K3": 1}})
	require.ErrorIs(t, err, evo.ErrUnknownParameter)

	_, err = client.Export(ctx, ExportRequest{RunID: "x", Latest: true})
	require.EqualError(t, err, "use either run id or latest")

	_, err = client.Export(ctx, ExportRequest{Latest: true})
	require.EqualError(t, err, "no runs available")

	_, err = client.PopulationHistory(ctx, HistoryRequest{RunID: "x", Limit: -1})
	require.EqualError(t, err, "limit must be >= 0")
}

func TestClientModels(t *testing.T) {
	client, _ := newTestClient(t)
	items := client.Models()
	require.Len(t, items, 2)
	assert.Equal(t, "adair", items[0].Name)
	assert.Equal(t, "hill", items[1].Name)
	assert.Contains(t, items[0].Defaults, "K1")
}

func TestClientHonoursExplicitZeroRates(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()
	zero := 0.0

	frozen, err := client.RunPopulation(ctx, PopulationRequest{N: 6, Generations: 3, Seed: 2, Dt: &zero})
	require.NoError(t, err)
	history, err := client.PopulationHistory(ctx, HistoryRequest{RunID: frozen.RunID})
	require.NoError(t, err)
	for _, gen := range history {
		assert.Equal(t, 10.0, gen.ParamMeans["K1"])
		assert.Equal(t, 0.0, gen.ParamVariances["K1"])
		assert.Equal(t, 1.0, gen.MeanFitness)
	}

	neutral, err := client.RunLineage(ctx, LineageRequest{Generations: 10, Seed: 4, SelectionStrength: &zero})
	require.NoError(t, err)
	assert.Equal(t, 1.0, neutral.FinalFitness)

	record, ok, err := stats.ReadRunRecord(filepath.Join(base, "runs"), neutral.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.0, record.SelectionStrength)
	assert.Equal(t, 10.0, record.Dt)
}

func TestClientRejectsNegativeRates(t *testing.T) {
	client, _ := newTestClient(t)
	negative := -1.0

	_, err := client.RunPopulation(context.Background(), PopulationRequest{Dt: &negative})
	require.ErrorIs(t, err, evo.ErrInvalidConfig)

	_, err = client.RunLineage(context.Background(), LineageRequest{SelectionStrength: &negative})
	require.ErrorIs(t, err, evo.ErrInvalidConfig)
}
