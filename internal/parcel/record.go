// Package parcel defines property records and the loaders that read them.
package parcel

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// Record is a single assessed property. Geometry is in longitude/latitude
// degrees (EPSG:4326). A nil Value means the assessment is missing.
type Record struct {
	ID       string   `json:"id"`
	Geometry geom.T   `json:"-"`
	Value    *float64 `json:"value,omitempty"`
	Address  string   `json:"address,omitempty"`
	LandUse  string   `json:"land_use,omitempty"`
	City     string   `json:"city,omitempty"`
}

// Point is a record's representative location after projection to planar meters.
type Point struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Value float64 `json:"value"`
}

// DropReason explains why a record did not contribute to aggregation.
type DropReason string

// Drop reasons.
const (
	DropInvalidGeometry  DropReason = "invalid_geometry"
	DropUnprojectable    DropReason = "unprojectable"
	DropMissingValue     DropReason = "missing_value"
	DropNonPositiveValue DropReason = "non_positive_value"
	DropOutsideGrid      DropReason = "outside_grid"
	DropBelowMinCount    DropReason = "below_min_count"
)

// DropReport counts dropped records by reason.
type DropReport struct {
	Total    int                `json:"total"`
	ByReason map[DropReason]int `json:"by_reason,omitempty"`
}

// Add records n dropped items for reason.
func (d *DropReport) Add(reason DropReason, n int) {
	if n <= 0 {
		return
	}
	if d.ByReason == nil {
		d.ByReason = make(map[DropReason]int)
	}
	d.ByReason[reason] += n
	d.Total += n
}

// Merge returns the sum of two reports. It does not modify either argument.
func (d DropReport) Merge(other DropReport) DropReport {
	var out DropReport
	for r, n := range d.ByReason {
		out.Add(r, n)
	}
	for r, n := range other.ByReason {
		out.Add(r, n)
	}
	return out
}

// Count returns the number of records dropped for reason.
func (d DropReport) Count(reason DropReason) int {
	return d.ByReason[reason]
}

// Reasons returns the reasons present in the report in a stable order.
func (d DropReport) Reasons() []DropReason {
	out := make([]DropReason, 0, len(d.ByReason))
	for r := range d.ByReason {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewValue returns a pointer to v, for building records in code.
func NewValue(v float64) *float64 {
	return &v
}
