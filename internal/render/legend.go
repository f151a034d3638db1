package render

import (
	"github.com/sells-group/valuegrid/internal/classify"
	"github.com/sells-group/valuegrid/internal/transit"
)

// LegendEntry describes one class swatch, lowest class first.
type LegendEntry struct {
	Class int     `json:"class"`
	Color string  `json:"color"`
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Legend builds the class legend for breakpoints and a palette of matching
// length. Missing palette entries fall back to PaletteFor.
func Legend(bp classify.Breakpoints, palette []string) []LegendEntry {
	if len(palette) != bp.Classes {
		palette = classify.PaletteFor(bp.Classes)
	}
	out := make([]LegendEntry, bp.Classes)
	for c := range out {
		lower, upper := bp.Range(c)
		out[c] = LegendEntry{Class: c, Color: palette[c], Label: bp.Label(c), Lower: lower, Upper: upper}
	}
	return out
}

// TransitLegendEntry describes one station category.
type TransitLegendEntry struct {
	Category transit.Category `json:"category"`
	Title    string           `json:"title"`
	Color    string           `json:"color"`
	Count    int              `json:"count"`
}

// TransitLegend lists the categories present in stations.
func TransitLegend(stations []transit.Station) []TransitLegendEntry {
	counts := transit.CountByCategory(stations)
	var out []TransitLegendEntry
	for _, c := range transit.Categories {
		if counts[c] == 0 {
			continue
		}
		out = append(out, TransitLegendEntry{Category: c, Title: c.Title(), Color: c.Color(), Count: counts[c]})
	}
	return out
}
