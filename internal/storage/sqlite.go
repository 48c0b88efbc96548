//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"evophys/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, engine, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			engine = excluded.engine,
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.Engine, run.CreatedAtUTC, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs ORDER BY created_at_utc, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, table := range []string{"population_history", "lineage_trajectory", "fixations"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SavePopulationHistory(ctx context.Context, runID string, history []model.PopulationGeneration) error {
	payload, err := EncodePopulationHistory(history)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "population_history", runID, payload)
}

func (s *SQLiteStore) GetPopulationHistory(ctx context.Context, runID string) ([]model.PopulationGeneration, bool, error) {
	payload, ok, err := s.getPayload(ctx, "population_history", runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	history, err := DecodePopulationHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode population history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveLineageTrajectory(ctx context.Context, runID string, samples []model.LineageSample) error {
	payload, err := EncodeLineageTrajectory(samples)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "lineage_trajectory", runID, payload)
}

func (s *SQLiteStore) GetLineageTrajectory(ctx context.Context, runID string) ([]model.LineageSample, bool, error) {
	payload, ok, err := s.getPayload(ctx, "lineage_trajectory", runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	samples, err := DecodeLineageTrajectory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode lineage trajectory %s: %w", runID, err)
	}
	return samples, true, nil
}

func (s *SQLiteStore) SaveFixations(ctx context.Context, runID string, events []model.FixationEvent) error {
	payload, err := EncodeFixations(events)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "fixations", runID, payload)
}

func (s *SQLiteStore) GetFixations(ctx context.Context, runID string) ([]model.FixationEvent, bool, error) {
	payload, ok, err := s.getPayload(ctx, "fixations", runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	events, err := DecodeFixations(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fixations %s: %w", runID, err)
	}
	return events, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// savePayload upserts a run-keyed JSON payload. table is always one of the
// constant history table names.
func (s *SQLiteStore) savePayload(ctx context.Context, table, runID string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) getPayload(ctx context.Context, table, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errStoreNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			engine TEXT NOT NULL,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS population_history (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS lineage_trajectory (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fixations (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
