package parcel

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Fields maps source attribute names onto record fields. Matching is
// case-insensitive. Empty names are skipped.
type Fields struct {
	ID      string `yaml:"id" mapstructure:"id"`
	Value   string `yaml:"value" mapstructure:"value"`
	Address string `yaml:"address" mapstructure:"address"`
	LandUse string `yaml:"land_use" mapstructure:"land_use"`
	City    string `yaml:"city" mapstructure:"city"`
}

// DefaultFields matches the MassGIS L3 assessment layout.
func DefaultFields() Fields {
	return Fields{
		ID:      "LOC_ID",
		Value:   "TOTAL_VAL",
		Address: "SITE_ADDR",
		LandUse: "USE_CODE",
		City:    "CITY",
	}
}

// LoadShapefile reads parcel polygons and their attributes from a shapefile
// whose coordinates are longitude/latitude. Shapes that cannot be converted
// are kept with a nil geometry so the projector reports them as dropped.
func LoadShapefile(path string, fields Fields) ([]Record, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parcel: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		if name == "" {
			return ""
		}
		idx, ok := fieldIdx[strings.ToLower(name)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var records []Record
	var unconverted int
	for reader.Next() {
		n, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			unconverted++
		}

		id := attr(fields.ID)
		if id == "" {
			id = strconv.Itoa(n)
		}
		records = append(records, Record{
			ID:       id,
			Geometry: g,
			Value:    ParseValue(attr(fields.Value)),
			Address:  attr(fields.Address),
			LandUse:  attr(fields.LandUse),
			City:     attr(fields.City),
		})
	}

	zap.L().Debug("parcel: shapefile loaded",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Int("unconverted_shapes", unconverted),
	)
	return records, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. It returns nil for
// unsupported or malformed shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polygonToMultiPolygon converts each part of a shapefile polygon into its own
// polygon ring.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("parcel: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("parcel: skipping malformed polygon", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// LoadGeoJSON reads a GeoJSON FeatureCollection of parcels. Attribute names in
// fields are matched against feature properties.
func LoadGeoJSON(r io.Reader, fields Fields) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "parcel: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "parcel: decode geojson")
	}

	records := make([]Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		props := lowerKeys(f.Properties)
		prop := func(name string) string {
			if name == "" {
				return ""
			}
			return propString(props[strings.ToLower(name)])
		}

		id := prop(fields.ID)
		if id == "" {
			id = f.ID
		}
		if id == "" {
			id = strconv.Itoa(i)
		}
		records = append(records, Record{
			ID:       id,
			Geometry: f.Geometry,
			Value:    ParseValue(prop(fields.Value)),
			Address:  prop(fields.Address),
			LandUse:  prop(fields.LandUse),
			City:     prop(fields.City),
		})
	}
	return records, nil
}

func lowerKeys(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// csvRow is the point-per-row CSV layout accepted by LoadCSV.
type csvRow struct {
	ID      string `csv:"id"`
	Lon     string `csv:"lon"`
	Lat     string `csv:"lat"`
	Value   string `csv:"value"`
	Address string `csv:"address,omitempty"`
	LandUse string `csv:"land_use,omitempty"`
	City    string `csv:"city,omitempty"`
}

// LoadCSV reads point records from a CSV with id, lon, lat and value columns.
// Rows whose coordinates do not parse get a nil geometry.
func LoadCSV(r io.Reader) ([]Record, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "parcel: read csv header")
	}

	var records []Record
	for {
		var row csvRow
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, eris.Wrapf(err, "parcel: decode csv row %d", len(records)+1)
		}

		var g geom.T
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row.Lon), 64)
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row.Lat), 64)
		if lonErr == nil && latErr == nil {
			g = geom.NewPointFlat(geom.XY, []float64{lon, lat})
		}

		id := strings.TrimSpace(row.ID)
		if id == "" {
			id = strconv.Itoa(len(records))
		}
		records = append(records, Record{
			ID:       id,
			Geometry: g,
			Value:    ParseValue(row.Value),
			Address:  strings.TrimSpace(row.Address),
			LandUse:  strings.TrimSpace(row.LandUse),
			City:     strings.TrimSpace(row.City),
		})
	}
	return records, nil
}

// ParseValue parses an assessed value such as "$1,250,000". Empty or
// unparseable input yields nil.
func ParseValue(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// FilterCities keeps records whose City matches one of cities
// (case-insensitive). An empty list keeps everything.
func FilterCities(records []Record, cities []string) []Record {
	if len(cities) == 0 {
		return records
	}
	keep := make(map[string]bool, len(cities))
	for _, c := range cities {
		keep[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep[strings.ToUpper(strings.TrimSpace(r.City))] {
			out = append(out, r)
		}
	}
	return out
}
