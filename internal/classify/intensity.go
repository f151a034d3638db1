package classify

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Heat-map intensity levels, lowest class first.
var (
	QuartileLevels = []float64{0.2, 0.4, 0.7, 1.0}
	TierLevels     = []float64{0.3, 0.6, 0.8, 1.0}
)

// DefaultTierPercentiles are the cut points of the multi-tier heat map.
var DefaultTierPercentiles = []float64{33, 67, 90}

// ClassIntensity maps the class of v onto levels. When levels and classes
// differ in length, intensity is spread linearly over (0, 1].
func ClassIntensity(b Breakpoints, v float64, levels []float64) float64 {
	c := b.ClassOf(v)
	if len(levels) == b.Classes && c < len(levels) {
		return levels[c]
	}
	if b.Classes <= 0 {
		return 0
	}
	return float64(c+1) / float64(b.Classes)
}

// QuartileIntensity returns 0.2, 0.4, 0.7 or 1.0 by quartile.
func QuartileIntensity(b Breakpoints, v float64) float64 {
	return ClassIntensity(b, v, QuartileLevels)
}

// TierIntensity returns 0.3, 0.6, 0.8 or 1.0 by tier.
func TierIntensity(b Breakpoints, v float64) float64 {
	return ClassIntensity(b, v, TierLevels)
}

// LogNormalize scales log10(values) onto [0, 1]. A distribution with no
// spread maps to 0.5 everywhere. Non-positive values map to 0.
func LogNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	logs := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			logs = append(logs, math.Log10(v))
		}
	}
	if len(logs) == 0 {
		return out
	}
	lo, hi := floats.Min(logs), floats.Max(logs)
	span := hi - lo
	for i, v := range values {
		switch {
		case v <= 0:
			out[i] = 0
		case span == 0:
			out[i] = 0.5
		default:
			out[i] = (math.Log10(v) - lo) / span
		}
	}
	return out
}
