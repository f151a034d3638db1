package engine

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/valuegrid/internal/classify"
	"github.com/sells-group/valuegrid/internal/parcel"
	"github.com/sells-group/valuegrid/internal/projection"
)

// PropertyClass is one parcel classified against the whole distribution.
// LogIntensity is log10(value) scaled onto [0, 1] across the batch.
type PropertyClass struct {
	ID           string  `json:"id"`
	Lon          float64 `json:"lon"`
	Lat          float64 `json:"lat"`
	Value        float64 `json:"value"`
	Class        int     `json:"class"`
	Color        string  `json:"color"`
	Intensity    float64 `json:"intensity"`
	LogIntensity float64 `json:"log_intensity"`
	Address      string  `json:"address,omitempty"`
	Geometry     geom.T  `json:"-"`
}

// PropertyResult is the output of a per-property classification.
type PropertyResult struct {
	Breakpoints classify.Breakpoints `json:"breakpoints"`
	Palette     []string             `json:"palette"`
	Properties  []PropertyClass      `json:"properties"`
	Dropped     parcel.DropReport    `json:"dropped"`
	Degenerate  bool                 `json:"degenerate"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// ClassifyProperties classifies every valid record into n classes over raw
// property values. It backs the choropleth and quartile heat-map modes.
func ClassifyProperties(records []parcel.Record, n int) (*PropertyResult, error) {
	if n < 2 {
		return nil, eris.Wrapf(ErrConfiguration, "need at least 2 classes, got %d", n)
	}
	props, dropped := validProperties(records)
	if len(props) == 0 {
		return nil, eris.Wrapf(ErrEmptyDataset, "classify: all %d records dropped", len(records))
	}

	bp, err := classify.Compute(propertyValues(props), n)
	if err != nil {
		return nil, eris.Wrap(err, "engine: classify properties")
	}
	return finishProperties(props, dropped, bp, classify.PaletteFor(n), classify.QuartileLevels), nil
}

// MultiTier classifies records into len(percentiles)+1 tiers cut at the given
// percentiles (33/67/90 by default) with tier intensities 0.3/0.6/0.8/1.0.
func MultiTier(records []parcel.Record, percentiles []float64) (*PropertyResult, error) {
	if len(percentiles) == 0 {
		percentiles = classify.DefaultTierPercentiles
	}
	props, dropped := validProperties(records)
	if len(props) == 0 {
		return nil, eris.Wrapf(ErrEmptyDataset, "classify: all %d records dropped", len(records))
	}

	bp, err := classify.Tiers(propertyValues(props), percentiles)
	if err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "tiers: %v", err)
	}
	return finishProperties(props, dropped, bp, classify.PaletteFor(bp.Classes), classify.TierLevels), nil
}

func validProperties(records []parcel.Record) ([]PropertyClass, parcel.DropReport) {
	var dropped parcel.DropReport
	out := make([]PropertyClass, 0, len(records))
	for _, r := range records {
		lon, lat, reason := projection.Representative(r.Geometry)
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
		out = append(out, PropertyClass{
			ID:       r.ID,
			Lon:      lon,
			Lat:      lat,
			Value:    v,
			Address:  r.Address,
			Geometry: r.Geometry,
		})
	}
	return out, dropped
}

func propertyValues(props []PropertyClass) []float64 {
	values := make([]float64, len(props))
	for i, p := range props {
		values[i] = p.Value
	}
	return values
}

func finishProperties(props []PropertyClass, dropped parcel.DropReport, bp classify.Breakpoints, palette []string, levels []float64) *PropertyResult {
	logs := classify.LogNormalize(propertyValues(props))
	for i := range props {
		c := bp.ClassOf(props[i].Value)
		props[i].Class = c
		props[i].Color = palette[c]
		props[i].Intensity = classify.ClassIntensity(bp, props[i].Value, levels)
		props[i].LogIntensity = logs[i]
	}

	res := &PropertyResult{
		Breakpoints: bp,
		Palette:     palette,
		Properties:  props,
		Dropped:     dropped,
		Degenerate:  bp.Degenerate,
	}
	if bp.Degenerate {
		res.Warnings = append(res.Warnings, degenerateWarning(len(props), bp.Classes))
	}
	return res
}
