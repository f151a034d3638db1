package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/valuegrid/internal/db"
	"github.com/sells-group/valuegrid/internal/engine"
)

// PostgresStore implements Store using pgxpool. Besides the compressed run
// payload, every zone is copied into valuegrid_zones for SQL access.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pingWithBackoff(ctx, pool.Ping, pingAttempts, pingBackoff); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const (
	pingAttempts = 4
	pingBackoff  = 500 * time.Millisecond
)

// pingWithBackoff calls ping up to attempts times, doubling the delay after
// each failure.
func pingWithBackoff(ctx context.Context, ping func(context.Context) error, attempts int, backoff time.Duration) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		zap.L().Warn("postgres: ping failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff *= 2
	}
	return err
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS valuegrid_runs (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL,
	cell_size     DOUBLE PRECISION NOT NULL,
	classes       INTEGER NOT NULL,
	zone_count    INTEGER NOT NULL,
	dropped_count INTEGER NOT NULL,
	degenerate    BOOLEAN NOT NULL DEFAULT false,
	payload       BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS valuegrid_zones (
	run_id     TEXT NOT NULL REFERENCES valuegrid_runs(id) ON DELETE CASCADE,
	row_idx    INTEGER NOT NULL,
	col_idx    INTEGER NOT NULL,
	prop_count INTEGER NOT NULL,
	median     DOUBLE PRECISION NOT NULL,
	mean       DOUBLE PRECISION NOT NULL,
	min_value  DOUBLE PRECISION NOT NULL,
	max_value  DOUBLE PRECISION NOT NULL,
	class      INTEGER NOT NULL,
	color      TEXT NOT NULL,
	label      TEXT NOT NULL,
	PRIMARY KEY (run_id, row_idx, col_idx)
);

CREATE INDEX IF NOT EXISTS idx_valuegrid_runs_mode ON valuegrid_runs(mode);
CREATE INDEX IF NOT EXISTS idx_valuegrid_runs_created_at ON valuegrid_runs(created_at DESC);
`

const zonesTable = "valuegrid_zones"

var zoneColumns = []string{
	"run_id", "row_idx", "col_idx", "prop_count", "median", "mean",
	"min_value", "max_value", "class", "color", "label",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, in RunInput) (*Run, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	payload, err := encodeResult(in.Result)
	if err != nil {
		return nil, err
	}
	run := newRun(uuid.New().String(), in, time.Now().UTC())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin save run")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO valuegrid_runs (id, name, source, mode, cell_size, classes, zone_count, dropped_count, degenerate, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.Name, run.Source, run.Mode, run.CellSize, run.Classes,
		run.ZoneCount, run.DroppedCount, run.Degenerate, payload, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	if _, err := db.CopyFrom(ctx, tx, zonesTable, zoneColumns, zoneRows(run.ID, in.Result)); err != nil {
		return nil, eris.Wrap(err, "postgres: copy zones")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit save run")
	}
	return run, nil
}

func zoneRows(runID string, res *engine.Result) [][]any {
	rows := make([][]any, len(res.Zones))
	for i, z := range res.Zones {
		a := z.Aggregate
		rows[i] = []any{
			runID, z.Cell.Row, z.Cell.Col, a.Count, a.Median, a.Mean,
			a.Min, a.Max, z.Class, z.Color, z.Label,
		}
	}
	return rows
}

const runColumns = `id, name, source, mode, cell_size, classes, zone_count, dropped_count, degenerate, created_at`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+`, payload FROM valuegrid_runs WHERE id = $1`, id)

	var r Run
	var payload []byte
	err := row.Scan(&r.ID, &r.Name, &r.Source, &r.Mode, &r.CellSize, &r.Classes,
		&r.ZoneCount, &r.DroppedCount, &r.Degenerate, &r.CreatedAt, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}

	r.Result, err = decodeResult(payload)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM valuegrid_runs WHERE 1=1`
	var args []any
	argN := 1

	if filter.Mode != "" {
		query += fmt.Sprintf(` AND mode = $%d`, argN)
		args = append(args, filter.Mode)
		argN++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argN)
	args = append(args, filter.limit())
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.Source, &r.Mode, &r.CellSize, &r.Classes,
			&r.ZoneCount, &r.DroppedCount, &r.Degenerate, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM valuegrid_runs WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete run %s", id)
	}
	return nil
}
