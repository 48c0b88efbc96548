//go:build sqlite

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evophys/internal/model"
	"evophys/internal/storage"
)

func TestPopulationCommandSQLitePersistsRun(t *testing.T) {
	workdir := chdirTemp(t)
	out := captureOutput(t)
	ctx := context.Background()

	dbPath := filepath.Join(workdir, "evophys.db")
	require.NoError(t, run(ctx, []string{
		"population",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--pop", "6",
		"--gens", "2",
		"--seed", "11",
		"--json",
	}))
	_, err := os.Stat(dbPath)
	require.NoError(t, err)

	var summary struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))

	store, err := storage.NewStore("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = storage.CloseIfSupported(store)
	})
	require.NoError(t, store.Init(ctx))

	record, ok, err := store.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.EnginePopulation, record.Engine)

	history, ok, err := store.GetPopulationHistory(ctx, summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, history, 3)
}
