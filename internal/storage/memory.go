package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"evophys/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	populations map[string][]model.PopulationGeneration
	lineages    map[string][]model.LineageSample
	fixations   map[string][]model.FixationEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.populations = make(map[string][]model.PopulationGeneration)
	s.lineages = make(map[string][]model.LineageSample)
	s.fixations = make(map[string][]model.FixationEvent)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errStoreNotInitialized
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, cloneRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.populations, id)
	delete(s.lineages, id)
	delete(s.fixations, id)
	return nil
}

func (s *MemoryStore) SavePopulationHistory(_ context.Context, runID string, history []model.PopulationGeneration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errStoreNotInitialized
	}
	copied := make([]model.PopulationGeneration, 0, len(history))
	for _, generation := range history {
		copied = append(copied, clonePopulationGeneration(generation))
	}
	s.populations[runID] = copied
	return nil
}

func (s *MemoryStore) GetPopulationHistory(_ context.Context, runID string) ([]model.PopulationGeneration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.populations[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.PopulationGeneration, 0, len(history))
	for _, generation := range history {
		copied = append(copied, clonePopulationGeneration(generation))
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveLineageTrajectory(_ context.Context, runID string, samples []model.LineageSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errStoreNotInitialized
	}
	copied := make([]model.LineageSample, 0, len(samples))
	for _, sample := range samples {
		sample.Params = cloneFloatMap(sample.Params)
		copied = append(copied, sample)
	}
	s.lineages[runID] = copied
	return nil
}

func (s *MemoryStore) GetLineageTrajectory(_ context.Context, runID string) ([]model.LineageSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples, ok := s.lineages[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.LineageSample, 0, len(samples))
	for _, sample := range samples {
		sample.Params = cloneFloatMap(sample.Params)
		copied = append(copied, sample)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveFixations(_ context.Context, runID string, events []model.FixationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errStoreNotInitialized
	}
	copied := make([]model.FixationEvent, 0, len(events))
	for _, event := range events {
		event.ParamsMutated = append([]string(nil), event.ParamsMutated...)
		copied = append(copied, event)
	}
	s.fixations[runID] = copied
	return nil
}

func (s *MemoryStore) GetFixations(_ context.Context, runID string) ([]model.FixationEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.fixations[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.FixationEvent, 0, len(events))
	for _, event := range events {
		event.ParamsMutated = append([]string(nil), event.ParamsMutated...)
		copied = append(copied, event)
	}
	return copied, true, nil
}

var errStoreNotInitialized = errors.New("store is not initialized")

func cloneRun(run model.RunRecord) model.RunRecord {
	run.Mutable = append([]string(nil), run.Mutable...)
	run.Defaults = cloneFloatMap(run.Defaults)
	run.FinalParams = cloneFloatMap(run.FinalParams)
	return run
}

func clonePopulationGeneration(g model.PopulationGeneration) model.PopulationGeneration {
	g.ParamMeans = cloneFloatMap(g.ParamMeans)
	g.ParamVariances = cloneFloatMap(g.ParamVariances)
	return g
}

func cloneFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// sortRuns orders runs oldest first, breaking ties by id.
func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
}
