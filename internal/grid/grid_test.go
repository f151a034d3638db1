package grid

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/valuegrid/internal/parcel"
)

func bound(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		extent   orb.Bound
		cell     float64
		wantRows int
		wantCols int
	}{
		{name: "exact multiple", extent: bound(0, 0, 1000, 500), cell: 100, wantRows: 5, wantCols: 10},
		{name: "rounded up", extent: bound(0, 0, 1001, 499), cell: 100, wantRows: 5, wantCols: 11},
		{name: "single point", extent: bound(5, 5, 5, 5), cell: QuarterMileMeters, wantRows: 1, wantCols: 1},
		{name: "negative origin", extent: bound(-2000, -1000, 2000, 1000), cell: MileMeters, wantRows: 2, wantCols: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Build(tt.extent, tt.cell)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, s.Rows)
			assert.Equal(t, tt.wantCols, s.Cols)
			assert.Equal(t, tt.extent.Min[0], s.OriginX)
			assert.Equal(t, tt.extent.Min[1], s.OriginY)
			assert.Equal(t, tt.wantRows*tt.wantCols, s.Len())
		})
	}
}

func TestBuild_InvalidCellSize(t *testing.T) {
	for _, size := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Build(bound(0, 0, 10, 10), size)
		require.Error(t, err, "size %v", size)
		assert.Contains(t, err.Error(), "cell size")
	}
}

func TestExtent(t *testing.T) {
	pts := []parcel.Point{{X: 3, Y: -1}, {X: -2, Y: 4}, {X: 1, Y: 1}}
	b := Extent(pts)
	assert.Equal(t, orb.Point{-2, -1}, b.Min)
	assert.Equal(t, orb.Point{3, 4}, b.Max)

	assert.Equal(t, orb.Bound{}, Extent(nil))
}

func TestCellFor_EveryPointInExtentIsCovered(t *testing.T) {
	pts := []parcel.Point{{X: 0, Y: 0}, {X: 1234.5, Y: 10}, {X: 700, Y: 987.6}, {X: 1234.5, Y: 987.6}}
	s, err := Build(Extent(pts), 100)
	require.NoError(t, err)

	for _, p := range pts {
		c, ok := s.CellFor(p.X, p.Y)
		require.True(t, ok, "point (%f, %f)", p.X, p.Y)
		assert.True(t, s.Contains(c))
		b := s.Bounds(c)
		assert.True(t, p.X >= b.Min[0] && p.X <= b.Max[0])
		assert.True(t, p.Y >= b.Min[1] && p.Y <= b.Max[1])
	}
}

func TestCellFor_Orientation(t *testing.T) {
	s, err := Build(bound(0, 0, 300, 200), 100)
	require.NoError(t, err)
	require.Equal(t, 2, s.Rows)
	require.Equal(t, 3, s.Cols)

	tests := []struct {
		name string
		x, y float64
		want Cell
	}{
		{name: "south west corner", x: 0, y: 0, want: Cell{Row: 0, Col: 0}},
		{name: "north is higher row", x: 50, y: 150, want: Cell{Row: 1, Col: 0}},
		{name: "east is higher col", x: 250, y: 50, want: Cell{Row: 0, Col: 2}},
		{name: "interior boundary goes up", x: 100, y: 100, want: Cell{Row: 1, Col: 1}},
		{name: "far corner is closed", x: 300, y: 200, want: Cell{Row: 1, Col: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := s.CellFor(tt.x, tt.y)
			require.True(t, ok)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestCellFor_Outside(t *testing.T) {
	s, err := Build(bound(0, 0, 300, 200), 100)
	require.NoError(t, err)

	for _, p := range [][2]float64{{-1, 0}, {0, -1}, {301, 0}, {0, 201}, {math.NaN(), 0}} {
		_, ok := s.CellFor(p[0], p[1])
		assert.False(t, ok, "point %v", p)
	}
}

func TestBoundsAndCenter(t *testing.T) {
	s := Spec{OriginX: -50, OriginY: 10, CellSize: 20, Rows: 3, Cols: 4}

	b := s.Bounds(Cell{Row: 2, Col: 1})
	assert.Equal(t, orb.Point{-30, 50}, b.Min)
	assert.Equal(t, orb.Point{-10, 70}, b.Max)
	assert.Equal(t, orb.Point{-20, 60}, s.Center(Cell{Row: 2, Col: 1}))

	all := s.Bound()
	assert.Equal(t, orb.Point{-50, 10}, all.Min)
	assert.Equal(t, orb.Point{30, 70}, all.Max)
}

func TestCells(t *testing.T) {
	s := Spec{CellSize: 1, Rows: 2, Cols: 2}
	assert.Equal(t, []Cell{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, s.Cells())
	assert.False(t, s.Contains(Cell{Row: 2, Col: 0}))
	assert.False(t, s.Contains(Cell{Row: 0, Col: -1}))
}

func TestCell_StringAndLess(t *testing.T) {
	assert.Equal(t, "Grid_3_7", Cell{Row: 3, Col: 7}.String())
	assert.True(t, Cell{Row: 0, Col: 5}.Less(Cell{Row: 1, Col: 0}))
	assert.True(t, Cell{Row: 1, Col: 0}.Less(Cell{Row: 1, Col: 1}))
	assert.False(t, Cell{Row: 1, Col: 1}.Less(Cell{Row: 1, Col: 1}))
}
