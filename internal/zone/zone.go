// Package zone joins grid cells, their aggregates and a classification into
// the serializable zone model renderers consume.
package zone

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/valuegrid/internal/aggregate"
	"github.com/sells-group/valuegrid/internal/classify"
	"github.com/sells-group/valuegrid/internal/grid"
)

// Statistic selects which per-cell value drives the classification.
type Statistic string

// Supported statistics.
const (
	Median Statistic = "median"
	Mean   Statistic = "mean"
)

// ParseStatistic accepts "median" or "mean", case-insensitively. Empty means
// median.
func ParseStatistic(s string) (Statistic, error) {
	switch Statistic(strings.ToLower(strings.TrimSpace(s))) {
	case "", Median:
		return Median, nil
	case Mean:
		return Mean, nil
	default:
		return "", eris.Errorf("zone: unknown statistic %q", s)
	}
}

// Of returns the selected statistic of an aggregate.
func (s Statistic) Of(a aggregate.CellAggregate) float64 {
	if s == Mean {
		return a.Mean
	}
	return a.Median
}

// Bounds is a planar cell box in meters.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Ring returns the box corners counter-clockwise from the south-west corner,
// closed.
func (b Bounds) Ring() [][2]float64 {
	return [][2]float64{
		{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY}, {b.MinX, b.MinY},
	}
}

func boundsOf(b orb.Bound) Bounds {
	return Bounds{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

// Record is one populated cell, classified and colored.
type Record struct {
	Cell      grid.Cell               `json:"cell"`
	Bounds    Bounds                  `json:"bounds"`
	Aggregate aggregate.CellAggregate `json:"aggregate"`
	Value     float64                 `json:"value"`
	Class     int                     `json:"class"`
	Color     string                  `json:"color"`
	Label     string                  `json:"label"`
}

// Options controls Build.
type Options struct {
	Statistic Statistic
	Palette   []string
}

// Values returns the selected statistic of every populated cell in
// row-major order.
func Values(cells map[grid.Cell]aggregate.CellAggregate, stat Statistic) []float64 {
	keys := sortedCells(cells)
	out := make([]float64, len(keys))
	for i, c := range keys {
		out[i] = stat.Of(cells[c])
	}
	return out
}

// Build produces one record per populated cell, sorted by row then column.
func Build(spec grid.Spec, cells map[grid.Cell]aggregate.CellAggregate, bp classify.Breakpoints, opts Options) ([]Record, error) {
	if len(opts.Palette) != bp.Classes {
		return nil, eris.Errorf("zone: palette has %d colors for %d classes", len(opts.Palette), bp.Classes)
	}
	stat := opts.Statistic
	if stat == "" {
		stat = Median
	}

	keys := sortedCells(cells)
	out := make([]Record, 0, len(keys))
	for _, c := range keys {
		if !spec.Contains(c) {
			return nil, eris.Errorf("zone: cell %s outside %dx%d grid", c, spec.Rows, spec.Cols)
		}
		agg := cells[c]
		if agg.Count == 0 {
			continue
		}
		v := stat.Of(agg)
		class := bp.ClassOf(v)
		out = append(out, Record{
			Cell:      c,
			Bounds:    boundsOf(spec.Bounds(c)),
			Aggregate: agg,
			Value:     v,
			Class:     class,
			Color:     opts.Palette[class],
			Label:     bp.Label(class),
		})
	}
	return out, nil
}

func sortedCells(cells map[grid.Cell]aggregate.CellAggregate) []grid.Cell {
	keys := make([]grid.Cell, 0, len(cells))
	for c := range cells {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
