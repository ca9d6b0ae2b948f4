package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ImperatorDravidor/inflio-sub007/internal/logger"
	"github.com/ImperatorDravidor/inflio-sub007/internal/report"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS project_transcripts (
    project_id  TEXT PRIMARY KEY,
    payload     TEXT NOT NULL,
    is_fallback INTEGER NOT NULL DEFAULT 0,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_analyses (
    project_id  TEXT PRIMARY KEY,
    payload     TEXT NOT NULL,
    is_fallback INTEGER NOT NULL DEFAULT 0,
    updated_at  TEXT NOT NULL
);
`

// ErrNotFound means no persisted output exists for the project.
var ErrNotFound = errors.New("no persisted output for project")

// Store is the SQLite-backed persistence gateway. Writes for distinct
// projects never interfere; re-running a project overwrites its output.
type Store struct {
	db       *sql.DB
	reporter *report.Writer
	log      *logrus.Entry
}

// Open connects to the content database. reporter may be nil to skip
// workbook export.
func Open(dbPath string, reporter *report.Writer) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}
	// Pragmas go in the DSN so every pooled connection carries them; applied
	// via Exec they would only configure whichever connection ran them.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{
		db:       db,
		reporter: reporter,
		log:      logger.New().WithField("component", "persist"),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveFull persists the transcript and analysis together, then exports the
// insight workbook. A report failure is logged, not surfaced; the data is
// already durable at that point.
func (s *Store) SaveFull(ctx context.Context, projectID string, transcript types.Transcript, analysis types.ContentAnalysis) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsert(ctx, tx, "project_transcripts", projectID, transcript, transcript.IsFallback); err != nil {
		return err
	}
	if err := upsert(ctx, tx, "project_analyses", projectID, analysis, analysis.IsFallback); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	if s.reporter != nil {
		if path, err := s.reporter.Write(projectID, transcript, analysis); err != nil {
			s.log.WithField("project_id", projectID).WithField("error", err.Error()).Warn("insight workbook export failed")
		} else {
			s.log.WithField("project_id", projectID).WithField("report", path).Info("insight workbook written")
		}
	}
	return nil
}

// SaveTranscriptOnly is the partial write shape: the analysis is dropped.
func (s *Store) SaveTranscriptOnly(ctx context.Context, projectID string, transcript types.Transcript) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsert(ctx, tx, "project_transcripts", projectID, transcript, transcript.IsFallback); err != nil {
		return err
	}
	return tx.Commit()
}

// GetTranscript returns the persisted transcript for a project.
func (s *Store) GetTranscript(ctx context.Context, projectID string) (types.Transcript, error) {
	var transcript types.Transcript
	err := get(ctx, s.db, "project_transcripts", projectID, &transcript)
	return transcript, err
}

// GetAnalysis returns the persisted analysis for a project.
func (s *Store) GetAnalysis(ctx context.Context, projectID string) (types.ContentAnalysis, error) {
	var analysis types.ContentAnalysis
	err := get(ctx, s.db, "project_analyses", projectID, &analysis)
	return analysis, err
}

func upsert(ctx context.Context, tx *sql.Tx, table, projectID string, payload any, isFallback bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	flag := 0
	if isFallback {
		flag = 1
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (project_id, payload, is_fallback, updated_at)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(project_id) DO UPDATE SET
                 payload = excluded.payload,
                 is_fallback = excluded.is_fallback,
                 updated_at = excluded.updated_at`, table),
		projectID, string(data), flag, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func get(ctx context.Context, db *sql.DB, table, projectID string, target any) error {
	var payload string
	err := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT payload FROM %s WHERE project_id = ?`, table), projectID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return fmt.Errorf("decode %s payload: %w", table, err)
	}
	return nil
}
