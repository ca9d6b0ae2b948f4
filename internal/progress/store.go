// Package progress persists per-run {stage, percent} records so a polling
// presentation layer can render live status. Writes for a given run are
// strictly ordered by its single owning orchestrator task.
package progress

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound means no run exists with the requested id.
var ErrNotFound = errors.New("pipeline run not found")

// ErrPercentDecrease means an update tried to move percent backwards while
// the run was still live.
var ErrPercentDecrease = errors.New("progress percent may not decrease")

// Store manages pipeline run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}
	// Pragmas go in the DSN so every pooled connection carries them; applied
	// via Exec they would only configure whichever connection ran them.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new run at stage queued, percent 0.
func (s *Store) Create(ctx context.Context, run *types.PipelineRun) error {
	now := time.Now().UTC()
	run.Stage = types.StageQueued
	run.Percent = 0
	run.StartedAt = now
	run.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (
            id, project_id, media_reference, language_hint,
            stage, percent, error_message, started_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		run.ID, run.ProjectID, run.MediaReference, run.LanguageHint,
		run.Stage, run.Percent,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Update applies a checkpoint. Re-applying the current (stage, percent) is a
// no-op; a decrease while the run is live is rejected.
func (s *Store) Update(ctx context.Context, runID string, stage types.Stage, percent int) error {
	if !types.ValidStage(stage) {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("percent %d out of range", percent)
	}
	if stage == types.StageCompleted && percent != 100 {
		return fmt.Errorf("completed runs must report 100 percent, got %d", percent)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	var currentStage types.Stage
	err = tx.QueryRowContext(ctx,
		`SELECT percent, stage FROM pipeline_runs WHERE id = ?`, runID,
	).Scan(&current, &currentStage)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("read run: %w", err)
	}
	if currentStage == types.StageFailed {
		return fmt.Errorf("run %s already failed", runID)
	}
	if percent == current && stage == currentStage {
		return nil
	}
	if percent < current {
		return fmt.Errorf("%w: %d -> %d for run %s", ErrPercentDecrease, current, percent, runID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE pipeline_runs SET stage = ?, percent = ?, updated_at = ? WHERE id = ?`,
		stage, percent, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return tx.Commit()
}

// Fail transitions the run to failed, freezing percent at its last confirmed
// value and recording the reason for later retrieval.
func (s *Store) Fail(ctx context.Context, runID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET stage = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		types.StageFailed, reason, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// Get returns the run record for the given id.
func (s *Store) Get(ctx context.Context, runID string) (*types.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, media_reference, language_hint,
                stage, percent, error_message, started_at, updated_at
           FROM pipeline_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return run, err
}

// List returns all runs, most recently started first.
func (s *Store) List(ctx context.Context) ([]types.PipelineRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, media_reference, language_hint,
                stage, percent, error_message, started_at, updated_at
           FROM pipeline_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []types.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*types.PipelineRun, error) {
	var run types.PipelineRun
	var startedAt, updatedAt string
	err := row.Scan(
		&run.ID, &run.ProjectID, &run.MediaReference, &run.LanguageHint,
		&run.Stage, &run.Percent, &run.ErrorMessage, &startedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &run, nil
}
