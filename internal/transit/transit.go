// Package transit loads rail stations and indexes them against a value grid.
package transit

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/valuegrid/internal/grid"
	"github.com/sells-group/valuegrid/internal/projection"
)

// Category is a rail service type.
type Category string

// Rail categories. Bus and ferry stops are not modeled.
const (
	LightRail    Category = "light_rail"
	HeavyRail    Category = "heavy_rail"
	CommuterRail Category = "commuter_rail"
)

// Categories lists every category in legend order.
var Categories = []Category{HeavyRail, LightRail, CommuterRail}

// ParseCategory accepts the category names plus a few common aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light_rail", "light rail", "green line":
		return LightRail, nil
	case "heavy_rail", "heavy rail", "subway", "metro":
		return HeavyRail, nil
	case "commuter_rail", "commuter rail":
		return CommuterRail, nil
	default:
		return "", eris.Errorf("transit: unknown category %q", s)
	}
}

// CategoryForVehicleType maps GTFS vehicle_type / route_type 0, 1 and 2.
func CategoryForVehicleType(t int) (Category, bool) {
	switch t {
	case 0:
		return LightRail, true
	case 1:
		return HeavyRail, true
	case 2:
		return CommuterRail, true
	default:
		return "", false
	}
}

// Color returns the marker color of the category.
func (c Category) Color() string {
	switch c {
	case HeavyRail:
		return "#DA291C"
	case LightRail:
		return "#00843D"
	case CommuterRail:
		return "#80276C"
	default:
		return "#333333"
	}
}

// Title returns a display name.
func (c Category) Title() string {
	switch c {
	case HeavyRail:
		return "Heavy Rail"
	case LightRail:
		return "Light Rail"
	case CommuterRail:
		return "Commuter Rail"
	default:
		return string(c)
	}
}

// Station is one rail stop. X and Y are filled by Project.
type Station struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Category     Category `json:"category" yaml:"category"`
	Municipality string   `json:"municipality,omitempty" yaml:"municipality"`
	Lon          float64  `json:"lon" yaml:"lon"`
	Lat          float64  `json:"lat" yaml:"lat"`
	X            float64  `json:"x" yaml:"-"`
	Y            float64  `json:"y" yaml:"-"`
}

// gtfsStop is the subset of GTFS stops.txt that matters here.
type gtfsStop struct {
	ID           string `csv:"stop_id"`
	Name         string `csv:"stop_name"`
	Lat          string `csv:"stop_lat"`
	Lon          string `csv:"stop_lon"`
	Municipality string `csv:"municipality,omitempty"`
	VehicleType  string `csv:"vehicle_type,omitempty"`
}

// LoadGTFS reads stations from a GTFS stops.txt. Stops that are not rail, or
// whose coordinates are missing, are skipped and counted.
func LoadGTFS(r io.Reader) ([]Station, int, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, 0, eris.Wrap(err, "transit: read stops header")
	}

	var stations []Station
	var skipped int
	for line := 2; ; line++ {
		var s gtfsStop
		if err := dec.Decode(&s); err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, eris.Wrapf(err, "transit: decode stops line %d", line)
		}

		vt, err := strconv.Atoi(strings.TrimSpace(s.VehicleType))
		if err != nil {
			skipped++
			continue
		}
		cat, ok := CategoryForVehicleType(vt)
		if !ok {
			skipped++
			continue
		}
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(s.Lat), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(s.Lon), 64)
		if latErr != nil || lonErr != nil {
			skipped++
			continue
		}

		stations = append(stations, Station{
			ID:           strings.TrimSpace(s.ID),
			Name:         strings.TrimSpace(s.Name),
			Category:     cat,
			Municipality: strings.TrimSpace(s.Municipality),
			Lon:          lon,
			Lat:          lat,
		})
	}

	zap.L().Debug("transit: gtfs stops loaded",
		zap.Int("stations", len(stations)),
		zap.Int("skipped", skipped),
	)
	return stations, skipped, nil
}

type yamlFile struct {
	Stations []Station `yaml:"stations"`
}

// LoadYAML reads a curated station list:
//
//	stations:
//	  - id: place-pktrm
//	    name: Park Street
//	    category: heavy_rail
//	    lon: -71.0624
//	    lat: 42.3564
//
// Entries with an unknown category are skipped and counted.
func LoadYAML(r io.Reader) ([]Station, int, error) {
	var doc yamlFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, eris.Wrap(err, "transit: decode yaml")
	}

	out := make([]Station, 0, len(doc.Stations))
	var skipped int
	for _, s := range doc.Stations {
		cat, err := ParseCategory(string(s.Category))
		if err != nil {
			skipped++
			continue
		}
		s.Category = cat
		out = append(out, s)
	}
	return out, skipped, nil
}

// DefaultMunicipalities is the Greater Boston metro filter.
var DefaultMunicipalities = []string{
	"BOSTON", "CAMBRIDGE", "SOMERVILLE", "BROOKLINE", "NEWTON", "WATERTOWN",
	"WALTHAM", "BELMONT", "ARLINGTON", "LEXINGTON", "WINCHESTER", "MEDFORD",
	"MALDEN", "EVERETT", "REVERE", "CHELSEA", "WINTHROP", "QUINCY", "MILTON",
	"DEDHAM", "NEEDHAM",
}

// Filter narrows a station list.
type Filter struct {
	Municipalities []string   `yaml:"municipalities" mapstructure:"municipalities"`
	Categories     []Category `yaml:"categories" mapstructure:"categories"`
}

// Apply keeps stations that pass every non-empty criterion. Municipalities
// match case-insensitively.
func (f Filter) Apply(stations []Station) []Station {
	towns := make(map[string]bool, len(f.Municipalities))
	for _, m := range f.Municipalities {
		towns[strings.ToUpper(strings.TrimSpace(m))] = true
	}
	cats := make(map[Category]bool, len(f.Categories))
	for _, c := range f.Categories {
		cats[c] = true
	}

	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if len(towns) > 0 && !towns[strings.ToUpper(strings.TrimSpace(s.Municipality))] {
			continue
		}
		if len(cats) > 0 && !cats[s.Category] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Index holds projected stations.
type Index struct {
	stations []Station
	dropped  int
}

// Project places stations in the planar frame of p. Stations that cannot be
// projected are dropped and counted.
func Project(stations []Station, p *projection.Projector) *Index {
	idx := &Index{stations: make([]Station, 0, len(stations))}
	for _, s := range stations {
		x, y, err := p.Forward(s.Lon, s.Lat)
		if err != nil {
			idx.dropped++
			continue
		}
		s.X, s.Y = x, y
		idx.stations = append(idx.stations, s)
	}
	return idx
}

// Stations returns every projected station sorted by category then name.
func (i *Index) Stations() []Station {
	out := append([]Station(nil), i.stations...)
	sortStations(out)
	return out
}

// Dropped returns how many stations could not be projected.
func (i *Index) Dropped() int {
	return i.dropped
}

// Within returns the stations whose projected point falls inside the grid.
func (i *Index) Within(spec grid.Spec) []Station {
	var out []Station
	for _, s := range i.stations {
		if _, ok := spec.CellFor(s.X, s.Y); ok {
			out = append(out, s)
		}
	}
	sortStations(out)
	return out
}

// CountByCategory tallies stations per category.
func CountByCategory(stations []Station) map[Category]int {
	out := make(map[Category]int)
	for _, s := range stations {
		out[s.Category]++
	}
	return out
}

func sortStations(s []Station) {
	rank := map[Category]int{}
	for i, c := range Categories {
		rank[c] = i
	}
	sort.SliceStable(s, func(a, b int) bool {
		if s[a].Category != s[b].Category {
			return rank[s[a].Category] < rank[s[b].Category]
		}
		if s[a].Name != s[b].Name {
			return s[a].Name < s[b].Name
		}
		return s[a].ID < s[b].ID
	})
}
