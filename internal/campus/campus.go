// Package campus loads colleges and universities and places them on a value
// grid as enrollment-sized markers.
package campus

import (
	"bytes"
	_ "embed"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/valuegrid/internal/grid"
	"github.com/sells-group/valuegrid/internal/projection"
)

//go:embed boston.yaml
var bostonYAML []byte

// Type is the institution's control.
type Type string

// Institution types.
const (
	Public  Type = "public"
	Private Type = "private"
)

// Marker colors by type.
const (
	PublicColor  = "#1f77b4"
	PrivateColor = "#ff7f0e"
)

// Color returns the marker color of the type.
func (t Type) Color() string {
	if t == Public {
		return PublicColor
	}
	return PrivateColor
}

// Title returns a display name.
func (t Type) Title() string {
	switch t {
	case Public:
		return "Public"
	case Private:
		return "Private"
	default:
		return string(t)
	}
}

// Institution is one campus. X and Y are filled by Project.
type Institution struct {
	Name       string  `json:"name" yaml:"name"`
	Enrollment int     `json:"enrollment" yaml:"enrollment"`
	Lon        float64 `json:"lon" yaml:"lon"`
	Lat        float64 `json:"lat" yaml:"lat"`
	City       string  `json:"city,omitempty" yaml:"city"`
	Founded    int     `json:"founded,omitempty" yaml:"founded"`
	Type       Type    `json:"type" yaml:"type"`
	Website    string  `json:"website,omitempty" yaml:"website"`
	X          float64 `json:"x" yaml:"-"`
	Y          float64 `json:"y" yaml:"-"`
}

type yamlFile struct {
	Institutions []Institution `yaml:"institutions"`
}

// Boston returns the built-in list of the 30 largest Greater Boston
// institutions by enrollment.
func Boston() []Institution {
	out, _, err := LoadYAML(bytes.NewReader(bostonYAML))
	if err != nil {
		panic(err)
	}
	return out
}

// LoadYAML reads an institution list in the same layout as the built-in one:
//
//	institutions:
//	  - name: Boston University
//	    enrollment: 36624
//	    lon: -71.1054
//	    lat: 42.3505
//	    type: private
//
// Entries without a name, with a negative enrollment or an unknown type are
// skipped and counted.
func LoadYAML(r io.Reader) ([]Institution, int, error) {
	var doc yamlFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, eris.Wrap(err, "campus: decode yaml")
	}

	out := make([]Institution, 0, len(doc.Institutions))
	var skipped int
	for _, inst := range doc.Institutions {
		inst.Name = strings.TrimSpace(inst.Name)
		inst.Type = Type(strings.ToLower(strings.TrimSpace(string(inst.Type))))
		if inst.Name == "" || inst.Enrollment < 0 || (inst.Type != Public && inst.Type != Private) {
			skipped++
			continue
		}
		out = append(out, inst)
	}
	zap.L().Debug("campus: institutions loaded",
		zap.Int("institutions", len(out)),
		zap.Int("skipped", skipped),
	)
	return out, skipped, nil
}

// ByName finds an institution case-insensitively.
func ByName(list []Institution, name string) (Institution, bool) {
	for _, inst := range list {
		if strings.EqualFold(inst.Name, strings.TrimSpace(name)) {
			return inst, true
		}
	}
	return Institution{}, false
}

// InCity keeps institutions whose city matches case-insensitively.
func InCity(list []Institution, city string) []Institution {
	var out []Institution
	for _, inst := range list {
		if strings.EqualFold(inst.City, strings.TrimSpace(city)) {
			out = append(out, inst)
		}
	}
	return out
}

// InBounds keeps institutions whose lon/lat lies inside b, edges included.
func InBounds(list []Institution, b orb.Bound) []Institution {
	var out []Institution
	for _, inst := range list {
		if b.Contains(orb.Point{inst.Lon, inst.Lat}) {
			out = append(out, inst)
		}
	}
	return out
}

// Largest returns the n institutions with the highest enrollment, largest
// first. Ties keep input order. n <= 0 returns them all.
func Largest(list []Institution, n int) []Institution {
	out := append([]Institution(nil), list...)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Enrollment > out[b].Enrollment
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Stats summarizes an institution list.
type Stats struct {
	Institutions       int     `json:"institutions"`
	TotalEnrollment    int     `json:"total_enrollment"`
	AverageEnrollment  float64 `json:"average_enrollment"`
	LargestEnrollment  int     `json:"largest_enrollment"`
	SmallestEnrollment int     `json:"smallest_enrollment"`
	Public             int     `json:"public"`
	Private            int     `json:"private"`
	OldestFounded      int     `json:"oldest_founded,omitempty"`
	NewestFounded      int     `json:"newest_founded,omitempty"`
}

// Summarize computes Stats. An empty list yields the zero value.
func Summarize(list []Institution) Stats {
	var s Stats
	if len(list) == 0 {
		return s
	}
	s.Institutions = len(list)
	s.SmallestEnrollment = math.MaxInt
	for _, inst := range list {
		s.TotalEnrollment += inst.Enrollment
		s.LargestEnrollment = max(s.LargestEnrollment, inst.Enrollment)
		s.SmallestEnrollment = min(s.SmallestEnrollment, inst.Enrollment)
		switch inst.Type {
		case Public:
			s.Public++
		case Private:
			s.Private++
		}
		if inst.Founded > 0 {
			if s.OldestFounded == 0 || inst.Founded < s.OldestFounded {
				s.OldestFounded = inst.Founded
			}
			s.NewestFounded = max(s.NewestFounded, inst.Founded)
		}
	}
	s.AverageEnrollment = float64(s.TotalEnrollment) / float64(s.Institutions)
	return s
}

// Marker radius range in pixels.
const (
	MinRadius = 4.0
	MaxRadius = 16.0
)

// Radius scales a marker by the square root of enrollment so marker area
// tracks enrollment. largest is the biggest enrollment on the map.
func Radius(enrollment, largest int) float64 {
	if largest <= 0 || enrollment <= 0 {
		return MinRadius
	}
	f := math.Sqrt(float64(min(enrollment, largest)) / float64(largest))
	return MinRadius + f*(MaxRadius-MinRadius)
}

// Project places institutions in the planar frame of p and keeps those whose
// point falls inside spec, largest first. The second result counts the
// institutions that could not be projected.
func Project(list []Institution, p *projection.Projector, spec grid.Spec) ([]Institution, int) {
	var out []Institution
	var dropped int
	for _, inst := range list {
		x, y, err := p.Forward(inst.Lon, inst.Lat)
		if err != nil {
			dropped++
			continue
		}
		if _, ok := spec.CellFor(x, y); !ok {
			continue
		}
		inst.X, inst.Y = x, y
		out = append(out, inst)
	}
	return Largest(out, 0), dropped
}
