// Package engine runs the projection, gridding, aggregation and
// classification stages over a batch of parcel records.
package engine

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/valuegrid/internal/aggregate"
	"github.com/sells-group/valuegrid/internal/classify"
	"github.com/sells-group/valuegrid/internal/grid"
	"github.com/sells-group/valuegrid/internal/parcel"
	"github.com/sells-group/valuegrid/internal/projection"
	"github.com/sells-group/valuegrid/internal/zone"
)

// Sentinel errors. Use errors.Is or eris.Is to match them through wrapping.
var (
	ErrConfiguration = eris.New("engine: invalid configuration")
	ErrEmptyDataset  = eris.New("engine: no valid records")
)

// Result is the output of a grid run. It is self-contained: the projection
// centre and grid spec are enough to place every zone on a map.
type Result struct {
	Grid           grid.Spec            `json:"grid"`
	Projection     projection.Center    `json:"projection"`
	Options        Options              `json:"options"`
	Zones          []zone.Record        `json:"zones"`
	Breakpoints    classify.Breakpoints `json:"breakpoints"`
	Palette        []string             `json:"palette"`
	Dropped        parcel.DropReport    `json:"dropped"`
	Degenerate     bool                 `json:"degenerate"`
	Warnings       []string             `json:"warnings,omitempty"`
	PopulatedCells int                  `json:"populated_cells"`
	Records        int                  `json:"records"`
	Assigned       int                  `json:"assigned"`
}

// Projector rebuilds the projection used for this result.
func (r *Result) Projector() (*projection.Projector, error) {
	return projection.FromCenter(r.Projection)
}

// Run bins records into a grid and classifies each populated cell. Invalid
// records are dropped and counted; only configuration errors and an empty
// dataset are fatal.
func Run(records []parcel.Record, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "engine"))

	proj, err := projection.ForRecords(records)
	if err != nil {
		if eris.Is(err, projection.ErrNoCoordinates) {
			return nil, eris.Wrapf(ErrEmptyDataset, "project: none of %d records has a usable location", len(records))
		}
		return nil, eris.Wrap(err, "engine: choose projection")
	}

	points, dropped := proj.Project(records)
	if len(points) == 0 {
		return nil, eris.Wrapf(ErrEmptyDataset, "project: all %d records dropped", len(records))
	}

	spec, err := grid.Build(grid.Extent(points), opts.CellSizeMeters)
	if err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "grid: %v", err)
	}

	agg, err := aggregate.Run(points, spec, aggregate.Options{MinCount: opts.MinCount, Workers: opts.Workers})
	if err != nil {
		return nil, eris.Wrap(err, "engine: aggregate")
	}
	dropped = dropped.Merge(agg.Dropped)
	if len(agg.Cells) == 0 {
		return nil, eris.Wrapf(ErrEmptyDataset, "aggregate: no cell reached min count %d", opts.MinCount)
	}

	stat := opts.statistic()
	bp, err := classify.Compute(zone.Values(agg.Cells, stat), opts.Classes)
	if err != nil {
		return nil, eris.Wrap(err, "engine: classify")
	}

	palette := opts.palette()
	zones, err := zone.Build(spec, agg.Cells, bp, zone.Options{Statistic: stat, Palette: palette})
	if err != nil {
		return nil, eris.Wrap(err, "engine: build zones")
	}

	res := &Result{
		Grid:           spec,
		Projection:     proj.Center(),
		Options:        opts,
		Zones:          zones,
		Breakpoints:    bp,
		Palette:        palette,
		Dropped:        dropped,
		Degenerate:     bp.Degenerate,
		PopulatedCells: len(zones),
		Records:        len(records),
		Assigned:       agg.Assigned,
	}
	if bp.Degenerate {
		res.Warnings = append(res.Warnings, degenerateWarning(len(zones), opts.Classes))
	}

	log.Debug("grid run complete",
		zap.Int("records", len(records)),
		zap.Int("assigned", agg.Assigned),
		zap.Int("dropped", dropped.Total),
		zap.Int("rows", spec.Rows),
		zap.Int("cols", spec.Cols),
		zap.Int("zones", len(zones)),
		zap.Bool("degenerate", bp.Degenerate),
	)
	return res, nil
}

func degenerateWarning(values, classes int) string {
	if values < classes {
		return fmt.Sprintf("degenerate distribution: %d populated cells for %d classes", values, classes)
	}
	return "degenerate distribution: every cell has the same value"
}
