package storage

import (
	"context"

	"evophys/internal/model"
)

// Store defines persistence operations for simulation runs and their
// per-generation histories.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	SavePopulationHistory(ctx context.Context, runID string, history []model.PopulationGeneration) error
	GetPopulationHistory(ctx context.Context, runID string) ([]model.PopulationGeneration, bool, error)
	SaveLineageTrajectory(ctx context.Context, runID string, samples []model.LineageSample) error
	GetLineageTrajectory(ctx context.Context, runID string) ([]model.LineageSample, bool, error)
	SaveFixations(ctx context.Context, runID string, events []model.FixationEvent) error
	GetFixations(ctx context.Context, runID string) ([]model.FixationEvent, bool, error)
}
