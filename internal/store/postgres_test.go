package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS valuegrid_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := testResult(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO valuegrid_runs`).
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"valuegrid_zones"}, zoneColumns).
		WillReturnResult(int64(len(res.Zones)))
	mock.ExpectCommit()

	run, err := s.SaveRun(context.Background(), RunInput{Name: "boston", Mode: "grid-zones", Result: res})
	require.NoError(t, err)
	assert.Equal(t, len(res.Zones), run.ZoneCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := testResult(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO valuegrid_runs`).
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"valuegrid_zones"}, zoneColumns).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SaveRun(context.Background(), RunInput{Name: "boston", Mode: "grid-zones", Result: res})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy zones")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := testResult(t)
	payload, err := encodeResult(res)
	require.NoError(t, err)
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, source, mode, .* FROM valuegrid_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "source", "mode", "cell_size", "classes", "zone_count", "dropped_count", "degenerate", "created_at", "payload",
		}).AddRow("run-1", "boston", "parcels.shp", "grid-zones", res.Grid.CellSize, 4, len(res.Zones), 1, res.Degenerate, created, payload))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "boston", run.Name)
	assert.Equal(t, created, run.CreatedAt)
	require.NotNil(t, run.Result)
	assert.Equal(t, res.Zones, run.Result.Zones)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM valuegrid_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM valuegrid_runs WHERE 1=1 AND mode = \$1 ORDER BY created_at DESC, id LIMIT \$2 OFFSET \$3`).
		WithArgs("grid-zones", 10, 20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "source", "mode", "cell_size", "classes", "zone_count", "dropped_count", "degenerate", "created_at",
		}).
			AddRow("a", "first", "", "grid-zones", 402.25, 10, 12, 0, false, created).
			AddRow("b", "second", "", "grid-zones", 1609.0, 4, 3, 2, true, created))

	runs, err := s.ListRuns(context.Background(), RunFilter{Mode: "grid-zones", Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
	assert.True(t, runs[1].Degenerate)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM valuegrid_runs WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteRun(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := pingWithBackoff(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 4, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := pingWithBackoff(context.Background(), func(context.Context) error {
			calls++
			return errors.New("connection refused")
		}, 3, time.Millisecond)
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := pingWithBackoff(ctx, func(context.Context) error {
			calls++
			return errors.New("connection refused")
		}, 5, time.Hour)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
