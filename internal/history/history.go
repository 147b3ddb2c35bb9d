// Package history keeps a summary row per completed scan in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memkit/treescan/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	root          TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	files         INTEGER NOT NULL,
	added         INTEGER NOT NULL,
	modified      INTEGER NOT NULL,
	deleted       INTEGER NOT NULL,
	errors        INTEGER NOT NULL,
	failed_chunks INTEGER NOT NULL,
	git_head      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// Run is the persisted summary of one scan.
type Run struct {
	ID           string    `json:"id"`
	Root         string    `json:"root"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
	Files        int       `json:"files"`
	Added        int       `json:"added"`
	Modified     int       `json:"modified"`
	Deleted      int       `json:"deleted"`
	Errors       int       `json:"errors"`
	FailedChunks int       `json:"failed_chunks"`
	GitHead      string    `json:"git_head,omitempty"`
}

// FromReport extracts the history row for a report.
func FromReport(r report.Report) Run {
	return Run{
		ID:           r.RunID,
		Root:         r.Root,
		StartedAt:    r.StartedAt,
		DurationMs:   r.DurationMs,
		Files:        r.Totals.Files,
		Added:        r.Changes.Added,
		Modified:     r.Changes.Modified,
		Deleted:      r.Changes.Deleted,
		Errors:       r.Totals.Errors,
		FailedChunks: r.Totals.FailedChunks,
		GitHead:      r.GitHead,
	}
}

// Store is a run history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure history: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a run.
func (s *Store) Record(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, root, started_at, duration_ms, files, added, modified, deleted, errors, failed_chunks, git_head)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.StartedAt.UnixMilli(), run.DurationMs, run.Files,
		run.Added, run.Modified, run.Deleted, run.Errors, run.FailedChunks, run.GitHead)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Latest returns up to limit runs, newest first.
func (s *Store) Latest(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, root, started_at, duration_ms, files, added, modified, deleted, errors, failed_chunks, git_head
FROM runs
ORDER BY started_at DESC, id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started int64
		)
		if err := rows.Scan(&run.ID, &run.Root, &started, &run.DurationMs, &run.Files,
			&run.Added, &run.Modified, &run.Deleted, &run.Errors, &run.FailedChunks, &run.GitHead); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
