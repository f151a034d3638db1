// Package classify splits a value distribution into ordered classes using
// percentile breakpoints.
//
// A value equal to a breakpoint belongs to the lower class: the class of v is
// the number of breakpoints strictly less than v.
package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Breakpoints are the N-1 ascending class boundaries of a distribution.
type Breakpoints struct {
	Values     []float64 `json:"values"`
	Classes    int       `json:"classes"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Degenerate bool      `json:"degenerate"`
	Tier       string    `json:"tier"`
}

// Compute returns the breakpoints that split values into n equal-population
// classes. Breakpoint i is the 100*i/n percentile with linear interpolation
// between order statistics. A distribution with one distinct value, or fewer
// values than classes, is flagged Degenerate but still yields n-1 boundaries.
func Compute(values []float64, n int) (Breakpoints, error) {
	if n < 2 {
		return Breakpoints{}, eris.Errorf("classify: need at least 2 classes, got %d", n)
	}
	ps := make([]float64, n-1)
	for i := range ps {
		ps[i] = 100 * float64(i+1) / float64(n)
	}
	bp, err := fromPercentiles(values, ps)
	if err != nil {
		return Breakpoints{}, err
	}
	bp.Tier = TierName(n)
	return bp, nil
}

// Tiers classifies values at arbitrary ascending percentiles, yielding
// len(percentiles)+1 classes.
func Tiers(values []float64, percentiles []float64) (Breakpoints, error) {
	if len(percentiles) == 0 {
		return Breakpoints{}, eris.New("classify: need at least one tier percentile")
	}
	if !sort.Float64sAreSorted(percentiles) {
		return Breakpoints{}, eris.Errorf("classify: tier percentiles must ascend, got %v", percentiles)
	}
	bp, err := fromPercentiles(values, percentiles)
	if err != nil {
		return Breakpoints{}, err
	}
	bp.Tier = "Tier"
	return bp, nil
}

func fromPercentiles(values []float64, ps []float64) (Breakpoints, error) {
	if len(values) == 0 {
		return Breakpoints{}, eris.New("classify: no values to classify")
	}
	sorted, err := sortedFinite(values)
	if err != nil {
		return Breakpoints{}, err
	}
	cuts, err := percentilesSorted(sorted, ps)
	if err != nil {
		return Breakpoints{}, err
	}

	classes := len(ps) + 1
	lo, hi := sorted[0], sorted[len(sorted)-1]
	return Breakpoints{
		Values:     cuts,
		Classes:    classes,
		Min:        lo,
		Max:        hi,
		Degenerate: lo == hi || len(sorted) < classes,
	}, nil
}

// Percentiles returns the requested percentiles (0..100) of values using
// linear interpolation between order statistics.
func Percentiles(values []float64, ps []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, eris.New("classify: no values for percentiles")
	}
	sorted, err := sortedFinite(values)
	if err != nil {
		return nil, err
	}
	return percentilesSorted(sorted, ps)
}

func sortedFinite(values []float64) ([]float64, error) {
	sorted := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, eris.Errorf("classify: non-finite value at index %d", i)
		}
		sorted[i] = v
	}
	sort.Float64s(sorted)
	return sorted, nil
}

func percentilesSorted(sorted []float64, ps []float64) ([]float64, error) {
	out := make([]float64, len(ps))
	last := float64(len(sorted) - 1)
	for i, p := range ps {
		if math.IsNaN(p) || p < 0 || p > 100 {
			return nil, eris.Errorf("classify: percentile out of range: %v", p)
		}
		pos := p / 100 * last
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		frac := pos - float64(lo)
		out[i] = sorted[lo] + frac*(sorted[hi]-sorted[lo])
	}
	return out, nil
}

// ClassOf returns the class in [0, Classes) for v.
func (b Breakpoints) ClassOf(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	c := sort.Search(len(b.Values), func(i int) bool { return b.Values[i] >= v })
	if c >= b.Classes {
		c = b.Classes - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// Range returns the value span of a class: Min for the lowest lower bound and
// Max for the highest upper bound.
func (b Breakpoints) Range(class int) (lower, upper float64) {
	lower, upper = b.Min, b.Max
	if class > 0 && class-1 < len(b.Values) {
		lower = b.Values[class-1]
	}
	if class < len(b.Values) {
		upper = b.Values[class]
	}
	return lower, upper
}

// Label renders a legend label such as "Decile 7: $620K–$680K". Classes are
// numbered from 1 in labels.
func (b Breakpoints) Label(class int) string {
	lower, upper := b.Range(class)
	tier := b.Tier
	if tier == "" {
		tier = TierName(b.Classes)
	}
	return fmt.Sprintf("%s %d: %s–%s", tier, class+1, FormatCompact(lower), FormatCompact(upper))
}

// TierName names a class count.
func TierName(n int) string {
	switch n {
	case 4:
		return "Quartile"
	case 5:
		return "Quintile"
	case 10:
		return "Decile"
	default:
		return "Class"
	}
}
