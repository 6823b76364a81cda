// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/permafrost/internal/store"
)

// dbPool is the subset of pgxpool.Pool the store depends on. pgxmock
// satisfies it, so tests run without a database.
type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// validTableName guards the identifier interpolated into queries, since
// placeholders cannot carry table names.
var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "freeze_runs"

// FreezeStoreConfig configures the audit store connection.
type FreezeStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// FreezeStore implements store.FreezeRunRepository using Postgres.
type FreezeStore struct {
	pool  dbPool
	table string
}

// NewFreezeStore connects a pool using the provided configuration.
func NewFreezeStore(ctx context.Context, cfg FreezeStoreConfig) (*FreezeStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return NewFreezeStoreWithPool(pool, cfg.Table)
}

// NewFreezeStoreWithPool wraps an existing pool. Tests use it with a
// pgxmock pool.
func NewFreezeStoreWithPool(pool dbPool, table string) (*FreezeStore, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &FreezeStore{pool: pool, table: table}, nil
}

// Close closes the underlying connection pool.
func (s *FreezeStore) Close() {
	s.pool.Close()
}

// StartRun inserts the run in the running state.
func (s *FreezeStore) StartRun(ctx context.Context, run store.FreezeRun) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, site, base_url, destination, started_at, last_update, outcome, pages, bytes_total)
		VALUES ($1, $2, $3, $4, $5, $5, $6, 0, 0)
		ON CONFLICT (id) DO NOTHING;
	`, s.table)
	_, err := s.pool.Exec(ctx, query, run.ID, run.Site, run.BaseURL, run.Destination, run.StartedAt, store.RunRunning)
	if err != nil {
		return fmt.Errorf("insert freeze run: %w", err)
	}
	return nil
}

// CompleteRun marks the run finished with an outcome and optional error.
func (s *FreezeStore) CompleteRun(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	outcome store.RunOutcome,
	errMsg *string,
) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, last_update = $1, outcome = $2, error_message = $3
		WHERE id = $4;
	`, s.table)
	_, err := s.pool.Exec(ctx, query, finishedAt, outcome, errMsg, id)
	if err != nil {
		return fmt.Errorf("complete freeze run: %w", err)
	}
	return nil
}

// AddPageStats applies page and byte deltas to the run counters.
func (s *FreezeStore) AddPageStats(ctx context.Context, id uuid.UUID, deltaPages, deltaBytes int64, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET pages = pages + $1, bytes_total = bytes_total + $2, last_update = $3
		WHERE id = $4;
	`, s.table)
	_, err := s.pool.Exec(ctx, query, deltaPages, deltaBytes, at, id)
	if err != nil {
		return fmt.Errorf("update freeze run stats: %w", err)
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *FreezeStore) GetRun(ctx context.Context, id uuid.UUID) (store.FreezeRun, error) {
	query := fmt.Sprintf(`
		SELECT id, site, base_url, destination, started_at, finished_at, last_update, outcome, pages, bytes_total, error_message
		FROM %s
		WHERE id = $1;
	`, s.table)
	var run store.FreezeRun
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.Site,
		&run.BaseURL,
		&run.Destination,
		&run.StartedAt,
		&run.FinishedAt,
		&run.LastUpdate,
		&run.Outcome,
		&run.Pages,
		&run.BytesTotal,
		&run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.FreezeRun{}, store.ErrNotFound
		}
		return store.FreezeRun{}, fmt.Errorf("get freeze run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs ordered most recent first, with optional
// outcome filtering.
func (s *FreezeStore) ListRuns(
	ctx context.Context,
	outcome *store.RunOutcome,
	limit,
	offset int,
) ([]store.FreezeRun, error) {
	query := fmt.Sprintf(`
		SELECT id, site, base_url, destination, started_at, finished_at, last_update, outcome, pages, bytes_total, error_message
		FROM %s
		WHERE ($1::text IS NULL OR outcome = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`, s.table)
	rows, err := s.pool.Query(ctx, query, outcome, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list freeze runs: %w", err)
	}
	defer rows.Close()

	var runs []store.FreezeRun
	for rows.Next() {
		var run store.FreezeRun
		err := rows.Scan(
			&run.ID,
			&run.Site,
			&run.BaseURL,
			&run.Destination,
			&run.StartedAt,
			&run.FinishedAt,
			&run.LastUpdate,
			&run.Outcome,
			&run.Pages,
			&run.BytesTotal,
			&run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan freeze run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate freeze runs: %w", err)
	}
	return runs, nil
}
