// Package projection converts longitude/latitude into a local planar frame
// measured in meters.
//
// The frame is a spherical azimuthal equidistant projection centred on the
// dataset. Distances from the centre are exact and distortion over a metro
// area (tens of kilometers) is well under a tenth of a percent, which keeps
// grid cell sizes meaningful in meters.
package projection

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/valuegrid/internal/parcel"
)

// EarthRadiusMeters is the IUGG mean Earth radius.
const EarthRadiusMeters = 6371008.8

const degToRad = math.Pi / 180

// ErrNoCoordinates is returned when no record has a usable location.
var ErrNoCoordinates = eris.New("projection: no valid coordinates")

// Projector performs the forward and inverse projection for one centre.
type Projector struct {
	centerLon float64
	centerLat float64
	sinLat0   float64
	cosLat0   float64
}

// Center describes the projection so a consumer can rebuild it.
type Center struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// New returns a projector centred on the given coordinate.
func New(centerLon, centerLat float64) (*Projector, error) {
	if !validLonLat(centerLon, centerLat) {
		return nil, eris.Errorf("projection: invalid centre (%f, %f)", centerLon, centerLat)
	}
	phi0 := centerLat * degToRad
	return &Projector{
		centerLon: centerLon,
		centerLat: centerLat,
		sinLat0:   math.Sin(phi0),
		cosLat0:   math.Cos(phi0),
	}, nil
}

// FromCenter rebuilds a projector from a stored centre.
func FromCenter(c Center) (*Projector, error) {
	return New(c.Lon, c.Lat)
}

// ForRecords centres a projector on the bounding box of every record's
// representative point. Records without a usable location are ignored here;
// Project reports them.
func ForRecords(records []parcel.Record) (*Projector, error) {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	var n int
	for _, r := range records {
		lon, lat, reason := Representative(r.Geometry)
		if reason != "" || !validLonLat(lon, lat) {
			continue
		}
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
		n++
	}
	if n == 0 {
		return nil, ErrNoCoordinates
	}
	return New((minLon+maxLon)/2, (minLat+maxLat)/2)
}

// Center returns the projection centre.
func (p *Projector) Center() Center {
	return Center{Lon: p.centerLon, Lat: p.centerLat}
}

// Forward projects lon/lat degrees to planar meters (x east, y north).
func (p *Projector) Forward(lon, lat float64) (x, y float64, err error) {
	if !validLonLat(lon, lat) {
		return 0, 0, eris.Errorf("projection: coordinate out of range (%f, %f)", lon, lat)
	}

	phi := lat * degToRad
	dLambda := (lon - p.centerLon) * degToRad
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	cosDL := math.Cos(dLambda)

	cosC := p.sinLat0*sinPhi + p.cosLat0*cosPhi*cosDL
	cosC = math.Max(-1, math.Min(1, cosC))
	c := math.Acos(cosC)
	if math.Pi-c < 1e-6 {
		return 0, 0, eris.Errorf("projection: coordinate antipodal to centre (%f, %f)", lon, lat)
	}

	k := 1.0
	if c > 1e-12 {
		k = c / math.Sin(c)
	}
	x = EarthRadiusMeters * k * cosPhi * math.Sin(dLambda)
	y = EarthRadiusMeters * k * (p.cosLat0*sinPhi - p.sinLat0*cosPhi*cosDL)
	return x, y, nil
}

// Inverse maps planar meters back to lon/lat degrees. Renderers use it to draw
// grid cells on a web map.
func (p *Projector) Inverse(x, y float64) (lon, lat float64) {
	rho := math.Hypot(x, y)
	if rho < 1e-9 {
		return p.centerLon, p.centerLat
	}
	c := rho / EarthRadiusMeters
	sinC, cosC := math.Sin(c), math.Cos(c)

	phi := math.Asin(cosC*p.sinLat0 + y*sinC*p.cosLat0/rho)
	lambda := p.centerLon*degToRad + math.Atan2(x*sinC, rho*p.cosLat0*cosC-y*p.sinLat0*sinC)

	lon = lambda / degToRad
	if lon > 180 {
		lon -= 360
	} else if lon < -180 {
		lon += 360
	}
	return lon, phi / degToRad
}

// Project converts records into planar points. Records without a usable
// geometry or with a missing or non-positive value are counted in the report
// instead of failing the batch.
func (p *Projector) Project(records []parcel.Record) ([]parcel.Point, parcel.DropReport) {
	var dropped parcel.DropReport
	points := make([]parcel.Point, 0, len(records))

	for _, r := range records {
		lon, lat, reason := Representative(r.Geometry)
		if reason != "" {
			dropped.Add(reason, 1)
			continue
		}
		if r.Value == nil {
			dropped.Add(parcel.DropMissingValue, 1)
			continue
		}
		v := *r.Value
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			dropped.Add(parcel.DropNonPositiveValue, 1)
			continue
		}

		x, y, err := p.Forward(lon, lat)
		if err != nil {
			dropped.Add(parcel.DropUnprojectable, 1)
			continue
		}
		points = append(points, parcel.Point{ID: r.ID, X: x, Y: y, Lon: lon, Lat: lat, Value: v})
	}
	return points, dropped
}

// Representative returns the lon/lat that stands in for a geometry: the point
// itself, or the area centroid of a polygon. A non-empty reason means the
// geometry cannot be used.
func Representative(g geom.T) (lon, lat float64, reason parcel.DropReason) {
	switch t := g.(type) {
	case *geom.Point:
		if t == nil || len(t.FlatCoords()) < 2 {
			return 0, 0, parcel.DropInvalidGeometry
		}
		lon, lat = t.X(), t.Y()
		if !finite(lon, lat) || !validLonLat(lon, lat) {
			return 0, 0, parcel.DropUnprojectable
		}
		return lon, lat, ""
	case *geom.Polygon:
		if t == nil || !usablePolygon(t) {
			return 0, 0, parcel.DropInvalidGeometry
		}
		return centroid(t)
	case *geom.MultiPolygon:
		if t == nil {
			return 0, 0, parcel.DropInvalidGeometry
		}
		mp := geom.NewMultiPolygon(t.Layout())
		for i := 0; i < t.NumPolygons(); i++ {
			if p := t.Polygon(i); usablePolygon(p) {
				if err := mp.Push(p); err != nil {
					return 0, 0, parcel.DropInvalidGeometry
				}
			}
		}
		if mp.NumPolygons() == 0 {
			return 0, 0, parcel.DropInvalidGeometry
		}
		return centroid(mp)
	case *geom.MultiPoint:
		if t == nil || t.NumPoints() == 0 {
			return 0, 0, parcel.DropInvalidGeometry
		}
		return centroid(t)
	default:
		return 0, 0, parcel.DropInvalidGeometry
	}
}

// usablePolygon reports whether every ring has three vertices plus the
// closing one.
func usablePolygon(p *geom.Polygon) bool {
	if p == nil || p.Empty() || p.NumLinearRings() == 0 {
		return false
	}
	for i := 0; i < p.NumLinearRings(); i++ {
		if p.LinearRing(i).NumCoords() < 4 {
			return false
		}
	}
	return true
}

// centroid checks the vertices before taking the centroid. Valid vertices
// with a non-finite centroid mean a collapsed (zero-area) shape.
func centroid(g geom.T) (lon, lat float64, reason parcel.DropReason) {
	flat := g.FlatCoords()
	stride := g.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		if !finite(flat[i], flat[i+1]) || !validLonLat(flat[i], flat[i+1]) {
			return 0, 0, parcel.DropUnprojectable
		}
	}
	c, err := xy.Centroid(g)
	if err != nil || len(c) < 2 || !finite(c[0], c[1]) {
		return 0, 0, parcel.DropInvalidGeometry
	}
	return c[0], c[1], ""
}

func finite(lon, lat float64) bool {
	return !math.IsNaN(lon) && !math.IsNaN(lat) && !math.IsInf(lon, 0) && !math.IsInf(lat, 0)
}

func validLonLat(lon, lat float64) bool {
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
