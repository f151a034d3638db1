package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/valuegrid/internal/grid"
	"github.com/sells-group/valuegrid/internal/parcel"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "odd", values: []float64{300, 100, 200}, want: 200},
		{name: "even averages middle", values: []float64{200, 100}, want: 150},
		{name: "single", values: []float64{42}, want: 42},
		{name: "skewed", values: []float64{1, 2, 3, 1000000}, want: 2.5},
		{name: "empty", values: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]float64(nil), tt.values...)
			assert.Equal(t, tt.want, Median(in))
			assert.Equal(t, tt.values, in, "input must not be reordered")
		})
	}
}

func TestMean(t *testing.T) {
	assert.Equal(t, 200.0, Mean([]float64{100, 200, 300}))
	assert.Equal(t, 0.0, Mean(nil))
}

func TestSummarize(t *testing.T) {
	got := Summarize([]float64{400, 100, 300, 200})
	assert.Equal(t, CellAggregate{Count: 4, Median: 250, Mean: 250, Min: 100, Max: 400, Sum: 1000}, got)
	assert.Equal(t, CellAggregate{}, Summarize(nil))
}

func testGrid() grid.Spec {
	return grid.Spec{OriginX: 0, OriginY: 0, CellSize: 100, Rows: 2, Cols: 2}
}

func TestRun(t *testing.T) {
	points := []parcel.Point{
		{ID: "a", X: 10, Y: 10, Value: 100},
		{ID: "b", X: 20, Y: 30, Value: 300},
		{ID: "c", X: 50, Y: 50, Value: 200},
		{ID: "d", X: 150, Y: 150, Value: 900},
		{ID: "e", X: 500, Y: 500, Value: 1},
	}

	res, err := Run(points, testGrid(), Options{})
	require.NoError(t, err)

	require.Len(t, res.Cells, 2)
	sw := res.Cells[grid.Cell{Row: 0, Col: 0}]
	assert.Equal(t, 3, sw.Count)
	assert.Equal(t, 200.0, sw.Median)
	assert.Equal(t, 200.0, sw.Mean)
	assert.Equal(t, 100.0, sw.Min)
	assert.Equal(t, 300.0, sw.Max)

	ne := res.Cells[grid.Cell{Row: 1, Col: 1}]
	assert.Equal(t, 1, ne.Count)
	assert.Equal(t, 900.0, ne.Median)

	_, empty := res.Cells[grid.Cell{Row: 0, Col: 1}]
	assert.False(t, empty, "empty cells produce no aggregate")

	assert.Equal(t, 4, res.Assigned)
	assert.Equal(t, 1, res.Dropped.Count(parcel.DropOutsideGrid))
}

func TestRun_MinCount(t *testing.T) {
	points := []parcel.Point{
		{X: 10, Y: 10, Value: 1}, {X: 20, Y: 20, Value: 2},
		{X: 150, Y: 150, Value: 3},
	}
	res, err := Run(points, testGrid(), Options{MinCount: 2})
	require.NoError(t, err)

	require.Len(t, res.Cells, 1)
	assert.Contains(t, res.Cells, grid.Cell{Row: 0, Col: 0})
	assert.Equal(t, 1, res.Dropped.Count(parcel.DropBelowMinCount))
	assert.Equal(t, 2, res.Assigned)
}

func TestRun_InvalidInput(t *testing.T) {
	_, err := Run(nil, grid.Spec{}, Options{})
	require.Error(t, err)

	_, err = Run(nil, testGrid(), Options{MinCount: -1})
	require.Error(t, err)
}

func TestRun_EmptyInput(t *testing.T) {
	res, err := Run(nil, testGrid(), Options{Workers: 4})
	require.NoError(t, err)
	assert.Empty(t, res.Cells)
	assert.Equal(t, 0, res.Dropped.Total)
}

func randomPoints(n int, seed int64) []parcel.Point {
	rng := rand.New(rand.NewSource(seed))
	out := make([]parcel.Point, n)
	for i := range out {
		out[i] = parcel.Point{
			X:     rng.Float64() * 200,
			Y:     rng.Float64() * 200,
			Value: 1000 + rng.Float64()*1e6,
		}
	}
	return out
}

func TestRun_OrderIndependent(t *testing.T) {
	points := randomPoints(500, 7)
	want, err := Run(points, testGrid(), Options{})
	require.NoError(t, err)

	shuffled := append([]parcel.Point(nil), points...)
	rand.New(rand.NewSource(99)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	got, err := Run(shuffled, testGrid(), Options{})
	require.NoError(t, err)

	assert.Equal(t, want.Cells, got.Cells)
}

func TestRun_ParallelMatchesSerial(t *testing.T) {
	points := randomPoints(1000, 3)
	serial, err := Run(points, testGrid(), Options{Workers: 1})
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 5000} {
		parallel, err := Run(points, testGrid(), Options{Workers: workers})
		require.NoError(t, err)
		assert.Equal(t, serial.Cells, parallel.Cells, "workers=%d", workers)
		assert.Equal(t, serial.Assigned, parallel.Assigned)
	}
}
