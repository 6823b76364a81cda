package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/permafrost/internal/store"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *FreezeStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	fs, err := NewFreezeStoreWithPool(mock, "freeze_runs")
	require.NoError(t, err)
	return mock, fs
}

func TestNewFreezeStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewFreezeStoreWithPool(mock, "freeze runs; drop table users")
	require.Error(t, err)
}

func TestStartRunInsertsRow(t *testing.T) {
	t.Parallel()

	mock, fs := newMockStore(t)
	id := uuid.New()
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO freeze_runs").
		WithArgs(id, "www.example.org", "https://www.example.org", "_build", now, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := fs.StartRun(context.Background(), store.FreezeRun{
		ID:          id,
		Site:        "www.example.org",
		BaseURL:     "https://www.example.org",
		Destination: "_build",
		StartedAt:   now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRunUpdatesRow(t *testing.T) {
	t.Parallel()

	mock, fs := newMockStore(t)
	id := uuid.New()
	finished := time.Unix(1700000100, 0).UTC()
	msg := "broken link /missing"

	mock.ExpectExec("UPDATE freeze_runs").
		WithArgs(finished, store.RunError, &msg, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := fs.CompleteRun(context.Background(), id, finished, store.RunError, &msg)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPageStatsAppliesDeltas(t *testing.T) {
	t.Parallel()

	mock, fs := newMockStore(t)
	id := uuid.New()
	at := time.Unix(1700000050, 0).UTC()

	mock.ExpectExec("UPDATE freeze_runs").
		WithArgs(int64(3), int64(2048), at, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := fs.AddPageStats(context.Background(), id, 3, 2048, at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunReturnsRecord(t *testing.T) {
	t.Parallel()

	mock, fs := newMockStore(t)
	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()

	rows := pgxmock.NewRows([]string{
		"id", "site", "base_url", "destination", "started_at",
		"finished_at", "last_update", "outcome", "pages", "bytes_total", "error_message",
	}).AddRow(
		id, "www.example.org", "https://www.example.org", "_build", started,
		nil, started, store.RunSuccess, int64(3), int64(2048), nil,
	)
	mock.ExpectQuery("SELECT (.+) FROM freeze_runs").
		WithArgs(id).
		WillReturnRows(rows)

	run, err := fs.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "www.example.org", run.Site)
	assert.Equal(t, store.RunSuccess, run.Outcome)
	assert.Equal(t, int64(3), run.Pages)
	assert.Nil(t, run.FinishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	mock, fs := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM freeze_runs").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := fs.GetRun(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsFiltersByOutcome(t *testing.T) {
	t.Parallel()

	mock, fs := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	outcome := store.RunSuccess

	rows := pgxmock.NewRows([]string{
		"id", "site", "base_url", "destination", "started_at",
		"finished_at", "last_update", "outcome", "pages", "bytes_total", "error_message",
	}).
		AddRow(uuid.New(), "a.example.org", "https://a.example.org", "_build", started,
			nil, started, store.RunSuccess, int64(1), int64(10), nil).
		AddRow(uuid.New(), "b.example.org", "https://b.example.org", "out", started,
			nil, started, store.RunSuccess, int64(2), int64(20), nil)
	mock.ExpectQuery("SELECT (.+) FROM freeze_runs").
		WithArgs(&outcome, 10, 0).
		WillReturnRows(rows)

	runs, err := fs.ListRuns(context.Background(), &outcome, 10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
