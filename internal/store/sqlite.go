package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS valuegrid_runs (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL,
	cell_size     REAL NOT NULL,
	classes       INTEGER NOT NULL,
	zone_count    INTEGER NOT NULL,
	dropped_count INTEGER NOT NULL,
	degenerate    INTEGER NOT NULL DEFAULT 0,
	payload       BLOB NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_valuegrid_runs_mode ON valuegrid_runs(mode);
CREATE INDEX IF NOT EXISTS idx_valuegrid_runs_created_at ON valuegrid_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, in RunInput) (*Run, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	payload, err := encodeResult(in.Result)
	if err != nil {
		return nil, err
	}

	run := newRun(uuid.New().String(), in, time.Now().UTC())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuegrid_runs (id, name, source, mode, cell_size, classes, zone_count, dropped_count, degenerate, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Source, run.Mode, run.CellSize, run.Classes,
		run.ZoneCount, run.DroppedCount, run.Degenerate, payload, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, mode, cell_size, classes, zone_count, dropped_count, degenerate, created_at, payload
		 FROM valuegrid_runs WHERE id = ?`,
		id,
	)

	var r Run
	var payload []byte
	err := row.Scan(&r.ID, &r.Name, &r.Source, &r.Mode, &r.CellSize, &r.Classes,
		&r.ZoneCount, &r.DroppedCount, &r.Degenerate, &r.CreatedAt, &payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}

	r.Result, err = decodeResult(payload)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, name, source, mode, cell_size, classes, zone_count, dropped_count, degenerate, created_at
	          FROM valuegrid_runs WHERE 1=1`
	var args []any

	if filter.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, filter.Mode)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.Source, &r.Mode, &r.CellSize, &r.Classes,
			&r.ZoneCount, &r.DroppedCount, &r.Degenerate, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM valuegrid_runs WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: delete run %s", id)
	}
	return nil
}
