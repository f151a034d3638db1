package render

import (
	"bytes"
	"encoding/json"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/valuegrid/internal/campus"
	"github.com/sells-group/valuegrid/internal/engine"
	"github.com/sells-group/valuegrid/internal/parcel"
	"github.com/sells-group/valuegrid/internal/transit"
)

func records() []parcel.Record {
	pt := func(id string, lon, lat, v float64) parcel.Record {
		return parcel.Record{ID: id, Geometry: geom.NewPointFlat(geom.XY, []float64{lon, lat}), Value: parcel.NewValue(v)}
	}
	return []parcel.Record{
		pt("a", -71.10, 42.30, 300000),
		pt("b", -71.10, 42.30, 320000),
		pt("c", -71.06, 42.33, 650000),
		pt("d", -71.03, 42.36, 1200000),
	}
}

func gridResult(t *testing.T) *engine.Result {
	t.Helper()
	opts := engine.DefaultHeatOptions()
	opts.CellSizeMeters = 1000
	res, err := engine.Run(records(), opts)
	require.NoError(t, err)
	return res
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "choropleth", want: Choropleth},
		{in: "Quartile_Heat", want: QuartileHeat},
		{in: "multi-tier-heat", want: MultiTierHeat},
		{in: "grid-zones", want: GridZones},
		{in: " grid-transit ", want: GridTransit},
		{in: "grid_campus", want: GridCampus},
		{in: "kriging", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	assert.True(t, GridTransit.UsesGrid())
	assert.True(t, GridTransit.UsesTransit())
	assert.True(t, GridZones.UsesGrid())
	assert.False(t, GridZones.UsesTransit())
	assert.True(t, GridCampus.UsesGrid())
	assert.True(t, GridCampus.UsesCampus())
	assert.False(t, GridTransit.UsesCampus())
	assert.False(t, Choropleth.UsesGrid())
	assert.True(t, QuartileHeat.IsHeat())
	assert.False(t, Choropleth.IsHeat())
}

func TestZonesGeoJSON(t *testing.T) {
	res := gridResult(t)
	stations := []transit.Station{{ID: "place-pktrm", Name: "Park Street", Category: transit.HeavyRail, Lon: -71.0624, Lat: 42.3564}}

	campuses := []campus.Institution{
		{Name: "Suffolk University", Enrollment: 6697, Lon: -71.0622, Lat: 42.3589, City: "Boston", Founded: 1906, Type: campus.Private},
		{Name: "Bunker Hill Community College", Enrollment: 8545, Lon: -71.0699, Lat: 42.3780, Type: campus.Public},
	}

	fc, err := ZonesGeoJSON(res, Overlay{Stations: stations, Campuses: campuses})
	require.NoError(t, err)
	require.Len(t, fc.Features, len(res.Zones)+3)

	first := fc.Features[0]
	assert.Equal(t, res.Zones[0].Cell.String(), first.ID)
	poly, ok := first.Geometry.(*geom.Polygon)
	require.True(t, ok)
	ring := poly.Coords()[0]
	require.Len(t, ring, 5)
	// The south-west zone's corner is the south-west-most parcel.
	assert.InDelta(t, -71.10, ring[0][0], 1e-6)
	assert.InDelta(t, 42.30, ring[0][1], 1e-6)
	assert.Equal(t, KindZone, first.Properties["kind"])
	assert.Equal(t, 2, first.Properties["count"])
	assert.Equal(t, "Median: $310,000 (2 properties)", first.Properties["tooltip"])

	station := fc.Features[len(res.Zones)]
	assert.Equal(t, KindStation, station.Properties["kind"])
	assert.Equal(t, "#DA291C", station.Properties["color"])

	suffolk := fc.Features[len(res.Zones)+1]
	assert.Equal(t, KindCampus, suffolk.Properties["kind"])
	assert.Equal(t, "Suffolk University", suffolk.ID)
	assert.Equal(t, campus.PrivateColor, suffolk.Properties["color"])
	assert.Equal(t, "Suffolk University (6,697 students)", suffolk.Properties["tooltip"])
	assert.Equal(t, 1906, suffolk.Properties["founded"])

	bhcc := fc.Features[len(res.Zones)+2]
	assert.Equal(t, campus.MaxRadius, bhcc.Properties["radius"])
	assert.NotContains(t, bhcc.Properties, "city")
	assert.Less(t, suffolk.Properties["radius"].(float64), campus.MaxRadius)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, fc))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "FeatureCollection", decoded["type"])
}

func TestPropertiesGeoJSON(t *testing.T) {
	square := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{-71.1, 42.3}, {-71.1, 42.31}, {-71.09, 42.31}, {-71.09, 42.3}, {-71.1, 42.3},
	}})
	recs := append(records(), parcel.Record{ID: "poly", Geometry: square, Value: parcel.NewValue(500000)})

	pr, err := engine.ClassifyProperties(recs, 4)
	require.NoError(t, err)

	fc, err := PropertiesGeoJSON(pr, Choropleth)
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)
	assert.IsType(t, &geom.Polygon{}, fc.Features[4].Geometry)
	assert.NotContains(t, fc.Features[4].Properties, "log_intensity")

	heat, err := PropertiesGeoJSON(pr, QuartileHeat)
	require.NoError(t, err)
	assert.IsType(t, &geom.Point{}, heat.Features[4].Geometry)
	assert.Contains(t, heat.Features[0].Properties, "log_intensity")
	assert.Equal(t, 0.2, heat.Features[0].Properties["intensity"])

	_, err = PropertiesGeoJSON(pr, GridZones)
	require.Error(t, err)
}

func TestLegend(t *testing.T) {
	res := gridResult(t)
	legend := Legend(res.Breakpoints, res.Palette)
	require.Len(t, legend, 4)
	assert.Equal(t, res.Breakpoints.Min, legend[0].Lower)
	assert.Equal(t, res.Breakpoints.Max, legend[3].Upper)
	assert.Equal(t, res.Palette[2], legend[2].Color)
	assert.Contains(t, legend[0].Label, "Quartile 1: ")

	fallback := Legend(res.Breakpoints, nil)
	assert.Equal(t, "#08306b", fallback[0].Color)
}

func TestTransitLegend(t *testing.T) {
	got := TransitLegend([]transit.Station{
		{Category: transit.CommuterRail}, {Category: transit.HeavyRail}, {Category: transit.HeavyRail},
	})
	require.Len(t, got, 2)
	assert.Equal(t, transit.HeavyRail, got[0].Category)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "Commuter Rail", got[1].Title)
}

func TestPNG(t *testing.T) {
	res := gridResult(t)
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, res, Overlay{}, 200))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	b := img.Bounds()
	assert.LessOrEqual(t, b.Dx(), 200)
	assert.LessOrEqual(t, b.Dy(), 200)
	assert.True(t, b.Dx() == 200 || b.Dy() == 200)

	require.Error(t, PNG(&buf, res, Overlay{}, 5))
	require.Error(t, PNG(&buf, nil, Overlay{}, 200))

	proj, err := res.Projector()
	require.NoError(t, err)
	campuses, _ := campus.Project(campus.Boston(), proj, res.Grid)
	require.NotEmpty(t, campuses)
	buf.Reset()
	require.NoError(t, PNG(&buf, res, Overlay{Campuses: campuses}, 200))
	_, err = png.Decode(&buf)
	require.NoError(t, err)
}

func TestXLSX(t *testing.T) {
	res := gridResult(t)
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, res))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	zones, ok := f.Sheet[SheetZones]
	require.True(t, ok)
	require.Len(t, zones.Rows, len(res.Zones)+1)
	assert.Equal(t, "cell", zones.Rows[0].Cells[0].String())
	assert.Equal(t, res.Zones[0].Cell.String(), zones.Rows[1].Cells[0].String())
	assert.Equal(t, res.Zones[0].Label, zones.Rows[1].Cells[10].String())

	legend, ok := f.Sheet[SheetLegend]
	require.True(t, ok)
	assert.Len(t, legend.Rows, 5)
}
