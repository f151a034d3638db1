// Package aggregate reduces projected points into per-cell value statistics.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/valuegrid/internal/grid"
	"github.com/sells-group/valuegrid/internal/parcel"
)

// CellAggregate summarizes the values that fell in one cell.
type CellAggregate struct {
	Count  int     `json:"count"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`
}

// Options tunes a Run.
type Options struct {
	// MinCount suppresses cells with fewer points. Zero keeps every populated cell.
	MinCount int
	// Workers partitions the point assignment. Values below 2 run serially.
	Workers int
}

// Result holds the populated cells and what was dropped along the way.
type Result struct {
	Cells    map[grid.Cell]CellAggregate
	Dropped  parcel.DropReport
	Assigned int
}

// partial is one worker's view: raw values per cell plus its drop count.
type partial struct {
	values  map[grid.Cell][]float64
	outside int
}

// Run assigns every point to its cell and computes per-cell statistics. The
// output depends only on the multiset of points per cell, so input order and
// worker count never change it.
func Run(points []parcel.Point, spec grid.Spec, opts Options) (Result, error) {
	if spec.CellSize <= 0 || spec.Rows < 1 || spec.Cols < 1 {
		return Result{}, eris.Errorf("aggregate: invalid grid %dx%d cell %v", spec.Rows, spec.Cols, spec.CellSize)
	}
	if opts.MinCount < 0 {
		return Result{}, eris.Errorf("aggregate: min count must not be negative, got %d", opts.MinCount)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(points) {
		workers = max(1, len(points))
	}

	parts := make([]partial, workers)
	chunk := (len(points) + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		lo := min(w*chunk, len(points))
		hi := min(lo+chunk, len(points))
		g.Go(func() error {
			parts[w] = assign(points[lo:hi], spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, eris.Wrap(err, "aggregate: assign points")
	}

	merged := merge(parts)

	res := Result{Cells: make(map[grid.Cell]CellAggregate, len(merged.values))}
	res.Dropped.Add(parcel.DropOutsideGrid, merged.outside)
	for cell, values := range merged.values {
		if len(values) < opts.MinCount {
			res.Dropped.Add(parcel.DropBelowMinCount, len(values))
			continue
		}
		res.Cells[cell] = Summarize(values)
		res.Assigned += len(values)
	}
	return res, nil
}

func assign(points []parcel.Point, spec grid.Spec) partial {
	p := partial{values: make(map[grid.Cell][]float64)}
	for _, pt := range points {
		cell, ok := spec.CellFor(pt.X, pt.Y)
		if !ok {
			p.outside++
			continue
		}
		p.values[cell] = append(p.values[cell], pt.Value)
	}
	return p
}

// merge concatenates per-worker value lists. Summarize sorts, so the
// concatenation order is irrelevant.
func merge(parts []partial) partial {
	if len(parts) == 1 {
		return parts[0]
	}
	out := partial{values: make(map[grid.Cell][]float64)}
	for _, p := range parts {
		out.outside += p.outside
		for cell, vs := range p.values {
			out.values[cell] = append(out.values[cell], vs...)
		}
	}
	return out
}

// Summarize computes the statistics of a non-empty value list. The slice is
// sorted in place.
func Summarize(values []float64) CellAggregate {
	if len(values) == 0 {
		return CellAggregate{}
	}
	sort.Float64s(values)
	sum := floats.Sum(values)
	return CellAggregate{
		Count:  len(values),
		Median: medianSorted(values),
		Mean:   sum / float64(len(values)),
		Min:    values[0],
		Max:    values[len(values)-1],
		Sum:    sum,
	}
}

// Median returns the exact median of values without modifying them. An even
// count averages the two middle values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return medianSorted(sorted)
}

// Mean returns the arithmetic mean of values, summed in sorted order.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return floats.Sum(sorted) / float64(len(sorted))
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
