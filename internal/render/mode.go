// Package render turns engine results into map layers and exports.
package render

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Mode selects a visualization.
type Mode string

// Supported modes.
const (
	Choropleth    Mode = "choropleth"
	QuartileHeat  Mode = "quartile-heat"
	MultiTierHeat Mode = "multi-tier-heat"
	GridZones     Mode = "grid-zones"
	GridTransit   Mode = "grid-transit"
	GridCampus    Mode = "grid-campus"
)

// Modes lists every mode.
var Modes = []Mode{Choropleth, QuartileHeat, MultiTierHeat, GridZones, GridTransit, GridCampus}

// ParseMode accepts a mode name, case-insensitively, with "_" or "-".
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", eris.Errorf("render: unknown mode %q", s)
}

// UsesGrid reports whether the mode renders grid zones.
func (m Mode) UsesGrid() bool {
	return m == GridZones || m == GridTransit || m == GridCampus
}

// UsesTransit reports whether the mode overlays rail stations.
func (m Mode) UsesTransit() bool {
	return m == GridTransit
}

// UsesCampus reports whether the mode overlays colleges and universities.
func (m Mode) UsesCampus() bool {
	return m == GridCampus
}

// IsHeat reports whether the mode renders weighted heat points.
func (m Mode) IsHeat() bool {
	return m == QuartileHeat || m == MultiTierHeat
}
