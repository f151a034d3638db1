// Package grid tiles a planar extent into square cells.
//
// Row 0 is the southernmost row and rows increase northward. Column 0 is the
// westernmost column and columns increase eastward.
package grid

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/valuegrid/internal/parcel"
)

// Common cell sizes in meters.
const (
	QuarterMileMeters = 402.25
	MileMeters        = 1609.0
)

// edgeTolerance absorbs floating-point error when a point sits on the far edge.
const edgeTolerance = 1e-9

// Cell identifies a grid square.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String returns the cell id used in labels and popups.
func (c Cell) String() string {
	return fmt.Sprintf("Grid_%d_%d", c.Row, c.Col)
}

// Less orders cells row-major.
func (c Cell) Less(o Cell) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// Spec is an immutable tiling: an origin, a cell size and dimensions.
type Spec struct {
	OriginX  float64 `json:"origin_x"`
	OriginY  float64 `json:"origin_y"`
	CellSize float64 `json:"cell_size_meters"`
	Rows     int     `json:"rows"`
	Cols     int     `json:"cols"`
}

// Extent returns the bounding box of the projected points.
func Extent(points []parcel.Point) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: orb.Point{points[0].X, points[0].Y}, Max: orb.Point{points[0].X, points[0].Y}}
	for _, p := range points[1:] {
		b = b.Extend(orb.Point{p.X, p.Y})
	}
	return b
}

// Build computes a spec that covers extent with cells of cellSize meters.
// Dimensions are rounded up so the grid covers the extent with no padding
// beyond that rounding; a degenerate extent still yields one cell.
func Build(extent orb.Bound, cellSize float64) (Spec, error) {
	if math.IsNaN(cellSize) || math.IsInf(cellSize, 0) || cellSize <= 0 {
		return Spec{}, eris.Errorf("grid: cell size must be positive, got %v", cellSize)
	}
	width := extent.Max[0] - extent.Min[0]
	height := extent.Max[1] - extent.Min[1]
	if math.IsNaN(width) || math.IsNaN(height) || width < 0 || height < 0 {
		return Spec{}, eris.New("grid: invalid extent")
	}

	return Spec{
		OriginX:  extent.Min[0],
		OriginY:  extent.Min[1],
		CellSize: cellSize,
		Rows:     dimension(height, cellSize),
		Cols:     dimension(width, cellSize),
	}, nil
}

func dimension(length, cellSize float64) int {
	n := int(math.Ceil(length / cellSize))
	if n < 1 {
		n = 1
	}
	return n
}

// Len returns the number of cells in the grid.
func (s Spec) Len() int {
	return s.Rows * s.Cols
}

// Bound returns the planar area covered by the grid.
func (s Spec) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{s.OriginX, s.OriginY},
		Max: orb.Point{s.OriginX + float64(s.Cols)*s.CellSize, s.OriginY + float64(s.Rows)*s.CellSize},
	}
}

// CellFor returns the cell containing (x, y). The far edges are closed so a
// point exactly on the max boundary falls in the last row or column. The
// boolean is false when the point lies outside the grid.
func (s Spec) CellFor(x, y float64) (Cell, bool) {
	col, ok := index(x, s.OriginX, s.CellSize, s.Cols)
	if !ok {
		return Cell{}, false
	}
	row, ok := index(y, s.OriginY, s.CellSize, s.Rows)
	if !ok {
		return Cell{}, false
	}
	return Cell{Row: row, Col: col}, true
}

func index(v, origin, size float64, n int) (int, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	offset := (v - origin) / size
	if offset < -edgeTolerance || offset > float64(n)+edgeTolerance {
		return 0, false
	}
	i := int(math.Floor(offset))
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return i, true
}

// Contains reports whether c is within the grid dimensions.
func (s Spec) Contains(c Cell) bool {
	return c.Row >= 0 && c.Row < s.Rows && c.Col >= 0 && c.Col < s.Cols
}

// Bounds returns the planar box of a cell.
func (s Spec) Bounds(c Cell) orb.Bound {
	minX := s.OriginX + float64(c.Col)*s.CellSize
	minY := s.OriginY + float64(c.Row)*s.CellSize
	return orb.Bound{
		Min: orb.Point{minX, minY},
		Max: orb.Point{minX + s.CellSize, minY + s.CellSize},
	}
}

// Center returns the planar centre of a cell.
func (s Spec) Center(c Cell) orb.Point {
	return s.Bounds(c).Center()
}

// Cells enumerates every cell in row-major order, south to north.
func (s Spec) Cells() []Cell {
	out := make([]Cell, 0, s.Len())
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			out = append(out, Cell{Row: r, Col: c})
		}
	}
	return out
}
