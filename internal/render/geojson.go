package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/valuegrid/internal/campus"
	"github.com/sells-group/valuegrid/internal/classify"
	"github.com/sells-group/valuegrid/internal/engine"
	"github.com/sells-group/valuegrid/internal/projection"
	"github.com/sells-group/valuegrid/internal/transit"
	"github.com/sells-group/valuegrid/internal/zone"
)

// Feature kinds carried in the "kind" property.
const (
	KindZone     = "zone"
	KindStation  = "station"
	KindCampus   = "campus"
	KindProperty = "property"
)

// Overlay holds the point layers drawn over the zones.
type Overlay struct {
	Stations []transit.Station
	Campuses []campus.Institution
}

// ZonesGeoJSON converts zones to lon/lat polygons. Overlay points are
// appended after the zones, stations first.
func ZonesGeoJSON(res *engine.Result, ov Overlay) (*geojson.FeatureCollection, error) {
	if res == nil {
		return nil, eris.New("render: nil result")
	}
	proj, err := res.Projector()
	if err != nil {
		return nil, eris.Wrap(err, "render: rebuild projection")
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(res.Zones)+len(ov.Stations)+len(ov.Campuses))}
	for _, z := range res.Zones {
		poly, err := cellPolygon(proj, z.Bounds)
		if err != nil {
			return nil, eris.Wrapf(err, "render: zone %s", z.Cell)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         z.Cell.String(),
			Geometry:   poly,
			Properties: zoneProperties(z),
		})
	}
	for _, s := range ov.Stations {
		fc.Features = append(fc.Features, stationFeature(s))
	}
	largest := campus.Summarize(ov.Campuses).LargestEnrollment
	for _, c := range ov.Campuses {
		fc.Features = append(fc.Features, campusFeature(c, largest))
	}
	return fc, nil
}

func cellPolygon(proj *projection.Projector, b zone.Bounds) (*geom.Polygon, error) {
	ring := b.Ring()
	coords := make([]geom.Coord, len(ring))
	for i, xy := range ring {
		lon, lat := proj.Inverse(xy[0], xy[1])
		coords[i] = geom.Coord{lon, lat}
	}
	return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
}

func zoneProperties(z zone.Record) map[string]any {
	a := z.Aggregate
	return map[string]any{
		"kind":    KindZone,
		"row":     z.Cell.Row,
		"col":     z.Cell.Col,
		"count":   a.Count,
		"median":  a.Median,
		"mean":    a.Mean,
		"min":     a.Min,
		"max":     a.Max,
		"value":   z.Value,
		"class":   z.Class,
		"color":   z.Color,
		"label":   z.Label,
		"tooltip": fmt.Sprintf("Median: %s (%d properties)", classify.FormatCurrency(a.Median), a.Count),
		"popup": fmt.Sprintf("%s<br>Median: %s<br>Mean: %s<br>Range: %s – %s<br>Properties: %s",
			z.Cell, classify.FormatCurrency(a.Median), classify.FormatCurrency(a.Mean),
			classify.FormatCurrency(a.Min), classify.FormatCurrency(a.Max), classify.FormatCount(a.Count)),
	}
}

func stationFeature(s transit.Station) *geojson.Feature {
	return &geojson.Feature{
		ID:       s.ID,
		Geometry: geom.NewPointFlat(geom.XY, []float64{s.Lon, s.Lat}),
		Properties: map[string]any{
			"kind":     KindStation,
			"name":     s.Name,
			"category": string(s.Category),
			"color":    s.Category.Color(),
			"popup":    fmt.Sprintf("<b>%s</b><br>%s", s.Name, s.Category.Title()),
		},
	}
}

func campusFeature(c campus.Institution, largest int) *geojson.Feature {
	props := map[string]any{
		"kind":       KindCampus,
		"name":       c.Name,
		"enrollment": c.Enrollment,
		"type":       string(c.Type),
		"color":      c.Type.Color(),
		"radius":     campus.Radius(c.Enrollment, largest),
		"tooltip":    fmt.Sprintf("%s (%s students)", c.Name, classify.FormatCount(c.Enrollment)),
		"popup": fmt.Sprintf("<b>%s</b><br>%s<br>Enrollment: %s",
			c.Name, c.Type.Title(), classify.FormatCount(c.Enrollment)),
	}
	if c.City != "" {
		props["city"] = c.City
	}
	if c.Founded > 0 {
		props["founded"] = c.Founded
	}
	return &geojson.Feature{
		ID:         c.Name,
		Geometry:   geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}),
		Properties: props,
	}
}

// PropertiesGeoJSON converts classified properties to features. Choropleth
// keeps the parcel footprint; heat modes emit the representative point with
// its intensity.
func PropertiesGeoJSON(pr *engine.PropertyResult, mode Mode) (*geojson.FeatureCollection, error) {
	if pr == nil {
		return nil, eris.New("render: nil property result")
	}
	if mode.UsesGrid() {
		return nil, eris.Errorf("render: mode %s renders zones, not properties", mode)
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(pr.Properties))}
	for _, p := range pr.Properties {
		var g geom.T = geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat})
		if mode == Choropleth && p.Geometry != nil {
			g = p.Geometry
		}
		props := map[string]any{
			"kind":      KindProperty,
			"value":     p.Value,
			"class":     p.Class,
			"color":     p.Color,
			"intensity": p.Intensity,
			"tooltip":   classify.FormatCurrency(p.Value),
		}
		if p.Address != "" {
			props["address"] = p.Address
		}
		if mode.IsHeat() {
			props["log_intensity"] = p.LogIntensity
		}
		fc.Features = append(fc.Features, &geojson.Feature{ID: p.ID, Geometry: g, Properties: props})
	}
	return fc, nil
}

// WriteGeoJSON encodes fc to w.
func WriteGeoJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(fc); err != nil {
		return eris.Wrap(err, "render: encode geojson")
	}
	return nil
}
