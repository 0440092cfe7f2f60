package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return clock }

	first, err := j.StartRun(ctx, "git@x:a.git", "/work/a")
	require.NoError(t, err)
	require.NoError(t, j.RecordSubstitution(ctx, first, "slug", "README.md", 3))
	require.NoError(t, j.RecordSubstitution(ctx, first, "slug", "main.go", 1))
	clock = clock.Add(time.Second)
	require.NoError(t, j.FinishRun(ctx, first, nil))

	clock = clock.Add(time.Minute)
	second, err := j.StartRun(ctx, "./tpl", "/work/b")
	require.NoError(t, err)
	require.NoError(t, j.FinishRun(ctx, second, errors.New("TOO_MANY_INPUT_TRIES: too many tries")))

	runs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "TOO_MANY_INPUT_TRIES")
	assert.Zero(t, runs[0].Replacements)

	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, StatusSucceeded, runs[1].Status)
	assert.Equal(t, "git@x:a.git", runs[1].Source)
	assert.Equal(t, "/work/a", runs[1].Destination)
	assert.Equal(t, 4, runs[1].Replacements)
	assert.Equal(t, 2, runs[1].Substitutions)
	assert.True(t, runs[1].StartedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.NotNil(t, runs[1].FinishedAt)
	assert.Equal(t, time.Second, runs[1].FinishedAt.Sub(runs[1].StartedAt))
}

func TestRecentLimitAndRunningRuns(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	for i := 0; i < 3; i++ {
		_, err := j.StartRun(ctx, "src", "dst")
		require.NoError(t, err)
	}

	runs, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestFinishUnknownRun(t *testing.T) {
	j := openTemp(t)
	assert.Error(t, j.FinishRun(context.Background(), "missing", nil))
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.StartRun(ctx, "src", "dst")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")
	assert.Equal(t, filepath.Join("/state", "nasti", "journal.db"), DefaultPath())

	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/ada")
	assert.Equal(t, filepath.Join("/home/ada", ".local", "state", "nasti", "journal.db"), DefaultPath())
}

func mockJournal(t *testing.T) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(sqlmock.NewResult(0, 0))
	j, err := New(db)
	require.NoError(t, err)
	return j, mock
}

func TestMigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("disk I/O error"))
	_, err = New(db)
	assert.ErrorContains(t, err, "failed to migrate journal")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteFailures(t *testing.T) {
	ctx := context.Background()
	j, mock := mockJournal(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(sqlmock.AnyArg(), "src", "dst", sqlmock.AnyArg(), "running").
		WillReturnError(errors.New("database is locked"))
	_, err := j.StartRun(ctx, "src", "dst")
	assert.ErrorContains(t, err, "failed to record run start")

	mock.ExpectExec(`INSERT INTO substitutions`).
		WithArgs("run-1", "slug", "README.md", 2).
		WillReturnError(errors.New("database is locked"))
	assert.ErrorContains(t, j.RecordSubstitution(ctx, "run-1", "slug", "README.md", 2), "failed to record substitution")

	mock.ExpectExec(`UPDATE runs SET`).
		WithArgs(sqlmock.AnyArg(), "failed", "boom", "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, j.FinishRun(ctx, "run-1", errors.New("boom")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentQueryFailure(t *testing.T) {
	j, mock := mockJournal(t)

	mock.ExpectQuery(`SELECT r.id`).WithArgs(5).WillReturnError(errors.New("no such table: runs"))
	_, err := j.Recent(context.Background(), 5)
	assert.ErrorContains(t, err, "failed to query runs")

	mock.ExpectQuery(`SELECT r.id`).WithArgs(5).WillReturnRows(
		sqlmock.NewRows([]string{"id", "source", "destination", "started_at", "finished_at", "status", "error", "sum", "count"}).
			AddRow("run-1", "src", "dst", "yesterday", nil, "running", "", 0, 0))
	_, err = j.Recent(context.Background(), 5)
	assert.ErrorContains(t, err, "invalid journal timestamp")

	assert.NoError(t, mock.ExpectationsWereMet())
}
