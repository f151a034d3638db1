// Package store persists grid runs so they can be listed and served later.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/valuegrid/internal/engine"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("store: run not found")

// Run is a saved grid run. Result is only populated by GetRun.
type Run struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Source       string         `json:"source"`
	Mode         string         `json:"mode"`
	CellSize     float64        `json:"cell_size_meters"`
	Classes      int            `json:"classes"`
	ZoneCount    int            `json:"zone_count"`
	DroppedCount int            `json:"dropped_count"`
	Degenerate   bool           `json:"degenerate"`
	CreatedAt    time.Time      `json:"created_at"`
	Result       *engine.Result `json:"result,omitempty"`
}

// RunInput is what SaveRun needs.
type RunInput struct {
	Name   string
	Source string
	Mode   string
	Result *engine.Result
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Mode   string `json:"mode,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines run persistence.
type Store interface {
	SaveRun(ctx context.Context, in RunInput) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	DeleteRun(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

const defaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func newRun(id string, in RunInput, now time.Time) *Run {
	r := &Run{
		ID:        id,
		Name:      in.Name,
		Source:    in.Source,
		Mode:      in.Mode,
		CreatedAt: now,
		Result:    in.Result,
	}
	if res := in.Result; res != nil {
		r.CellSize = res.Grid.CellSize
		r.Classes = res.Breakpoints.Classes
		r.ZoneCount = len(res.Zones)
		r.DroppedCount = res.Dropped.Total
		r.Degenerate = res.Degenerate
	}
	return r
}

func validateInput(in RunInput) error {
	if in.Result == nil {
		return eris.New("store: run has no result")
	}
	if in.Name == "" {
		return eris.New("store: run name is required")
	}
	return nil
}
