// Package journal keeps a local sqlite record of scaffolding runs and the
// substitutions each run applied.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Status is the outcome of a run
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	destination TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS substitutions (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	mutation     TEXT NOT NULL,
	file         TEXT NOT NULL,
	replacements INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_substitutions_run ON substitutions(run_id);
`

// Run is one recorded run
type Run struct {
	ID            string
	Source        string
	Destination   string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        Status
	Error         string
	Replacements  int
	Substitutions int
}

// Journal records runs in a sqlite database
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns $XDG_STATE_HOME/nasti/journal.db, falling back to
// ~/.local/state when XDG_STATE_HOME is unset.
func DefaultPath() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "nasti", "journal.db")
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "nasti", "journal.db")
}

// Open opens or creates the journal database at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	j, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an open database and ensures the schema exists
func New(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun inserts a running entry and returns its id
func (j *Journal) StartRun(ctx context.Context, source, destination string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, destination, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, source, destination, formatTime(j.now()), string(StatusRunning))
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// RecordSubstitution stores the replacements one mutation made in one file
func (j *Journal) RecordSubstitution(ctx context.Context, runID, mutation, file string, replacements int) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO substitutions (run_id, mutation, file, replacements) VALUES (?, ?, ?, ?)`,
		runID, mutation, file, replacements)
	if err != nil {
		return fmt.Errorf("failed to record substitution: %w", err)
	}
	return nil
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil
func (j *Journal) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		formatTime(j.now()), string(status), msg, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Recent returns up to limit runs, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.source, r.destination, r.started_at, r.finished_at, r.status, r.error,
		       COALESCE(SUM(s.replacements), 0), COUNT(s.run_id)
		FROM runs r
		LEFT JOIN substitutions s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r               Run
			started, status string
			finished        sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Destination, &started, &finished, &status, &r.Error,
			&r.Replacements, &r.Substitutions); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = Status(status)
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// fixed width so timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid journal timestamp %q: %w", s, err)
	}
	return t, nil
}
