package engine

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/valuegrid/internal/classify"
	"github.com/sells-group/valuegrid/internal/grid"
	"github.com/sells-group/valuegrid/internal/zone"
)

// Options configures a grid run. An empty Palette uses
// classify.PaletteFor(Classes).
type Options struct {
	CellSizeMeters float64        `json:"cell_size_meters"`
	Classes        int            `json:"classes"`
	Statistic      zone.Statistic `json:"statistic"`
	Palette        []string       `json:"palette,omitempty"`
	MinCount       int            `json:"min_count"`
	Workers        int            `json:"workers"`
}

// DefaultGridOptions returns quarter-mile cells split into deciles by median.
func DefaultGridOptions() Options {
	return Options{
		CellSizeMeters: grid.QuarterMileMeters,
		Classes:        10,
		Statistic:      zone.Median,
		Workers:        1,
	}
}

// DefaultHeatOptions returns the quartile configuration used by heat maps.
func DefaultHeatOptions() Options {
	opts := DefaultGridOptions()
	opts.Classes = 4
	return opts
}

// Validate rejects options before any data is touched. Errors wrap
// ErrConfiguration.
func (o Options) Validate() error {
	if math.IsNaN(o.CellSizeMeters) || math.IsInf(o.CellSizeMeters, 0) || o.CellSizeMeters <= 0 {
		return eris.Wrapf(ErrConfiguration, "cell size must be positive, got %v", o.CellSizeMeters)
	}
	if o.Classes < 2 {
		return eris.Wrapf(ErrConfiguration, "need at least 2 classes, got %d", o.Classes)
	}
	if _, err := zone.ParseStatistic(string(o.Statistic)); err != nil {
		return eris.Wrapf(ErrConfiguration, "unknown statistic %q", o.Statistic)
	}
	if len(o.Palette) > 0 {
		if len(o.Palette) != o.Classes {
			return eris.Wrapf(ErrConfiguration, "palette has %d colors for %d classes", len(o.Palette), o.Classes)
		}
		if err := classify.ValidatePalette(o.Palette); err != nil {
			return eris.Wrapf(ErrConfiguration, "palette: %v", err)
		}
	}
	if o.MinCount < 0 {
		return eris.Wrapf(ErrConfiguration, "min count must not be negative, got %d", o.MinCount)
	}
	if o.Workers < 0 {
		return eris.Wrapf(ErrConfiguration, "workers must not be negative, got %d", o.Workers)
	}
	return nil
}

func (o Options) palette() []string {
	if len(o.Palette) > 0 {
		return o.Palette
	}
	return classify.PaletteFor(o.Classes)
}

func (o Options) statistic() zone.Statistic {
	s, _ := zone.ParseStatistic(string(o.Statistic))
	return s
}
