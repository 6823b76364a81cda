package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("freeze run not found")

// RunOutcome mirrors the freeze_runs outcome column.
type RunOutcome string

// Run outcomes persisted in freeze_runs.outcome.
const (
	RunRunning RunOutcome = "running"
	RunSuccess RunOutcome = "success"
	RunError   RunOutcome = "error"
)

// FreezeRun models one freeze invocation for the audit trail.
type FreezeRun struct {
	// ID is the primary key of freeze_runs.
	ID uuid.UUID
	// Site is the host the tree was frozen for, from the base URL.
	Site string
	// BaseURL is the configured public URL of the site.
	BaseURL string
	// Destination is the directory or bucket the tree was written to.
	Destination string
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// LastUpdate is the timestamp of the most recent counter update.
	LastUpdate time.Time
	// Outcome is running/success/error.
	Outcome RunOutcome
	// Pages counts pages written so far.
	Pages int64
	// BytesTotal accumulates payload bytes written.
	BytesTotal int64
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// FreezeRunRepository persists freeze run lifecycle and counters.
type FreezeRunRepository interface {
	// StartRun inserts the run in the running state. Re-inserting the
	// same ID is a no-op.
	StartRun(ctx context.Context, run FreezeRun) error
	// CompleteRun marks the run finished with the given outcome and
	// optional error message.
	CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, outcome RunOutcome, errMsg *string) error
	// AddPageStats applies page/byte deltas accumulated during the run.
	AddPageStats(ctx context.Context, id uuid.UUID, deltaPages, deltaBytes int64, at time.Time) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (FreezeRun, error)
	// ListRuns returns runs filtered by optional outcome plus limit/offset.
	ListRuns(ctx context.Context, outcome *RunOutcome, limit, offset int) ([]FreezeRun, error)
}
