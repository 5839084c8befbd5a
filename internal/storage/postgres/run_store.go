// Package postgres persists worker run history in Postgres.
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

	"github.com/JakeFAU/vocabsync/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "worker_runs"

// RunStoreConfig controls the connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore implements store.RunRepository.
type RunStore struct {
	pool  pgxPool
	table string
}

var _ store.RunRepository = (*RunStore)(nil)

// NewRunStore connects to Postgres using cfg.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.postgres_dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
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
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool wraps an existing pool (primarily for testing).
func NewRunStoreWithPool(pool pgxPool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the pool.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the run table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id            uuid PRIMARY KEY,
			kind          text NOT NULL,
			total         integer NOT NULL DEFAULT 0,
			ticks         bigint NOT NULL DEFAULT 0,
			status        text NOT NULL,
			started_at    timestamptz NOT NULL,
			updated_at    timestamptz,
			finished_at   timestamptz,
			error_message text
		);
		CREATE INDEX IF NOT EXISTS %[1]s_started_at_idx ON %[1]s (started_at DESC);
	`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure run schema: %w", err)
	}
	return nil
}

// UpsertRunStart inserts a running row or refreshes kind/total/started_at.
func (s *RunStore) UpsertRunStart(ctx context.Context, id uuid.UUID, kind string, total int, startedAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, total, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE
		SET kind = EXCLUDED.kind, total = EXCLUDED.total, started_at = EXCLUDED.started_at;
	`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, kind, total, string(store.RunRunning), startedAt); err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// AddTicks increments the tick counter.
func (s *RunStore) AddTicks(ctx context.Context, id uuid.UUID, delta int64, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET ticks = ticks + $1, updated_at = $2 WHERE id = $3;`, s.table)
	res, err := s.pool.Exec(ctx, query, delta, at, id)
	if err != nil {
		return fmt.Errorf("add ticks: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("add ticks %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// CompleteRun marks a run finished.
func (s *RunStore) CompleteRun(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, updated_at = $1, status = $2, error_message = $3
		WHERE id = $4;
	`, s.table)
	res, err := s.pool.Exec(ctx, query, finishedAt, string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("complete run %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// GetRun loads one run.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (store.Run, error) {
	query := fmt.Sprintf(`
		SELECT id::text, kind, total, ticks, status, started_at, finished_at, error_message
		FROM %s
		WHERE id = $1;
	`, s.table)
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. A non-positive limit returns all rows.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	query := fmt.Sprintf(`
		SELECT id::text, kind, total, ticks, status, started_at, finished_at, error_message
		FROM %s
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`, s.table)
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := s.pool.Query(ctx, query, statusArg, limitArg, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		id     string
		status string
	)
	err := row.Scan(
		&id,
		&run.Kind,
		&run.Total,
		&run.Ticks,
		&status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.Run{}, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return store.Run{}, fmt.Errorf("parse run id: %w", err)
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
