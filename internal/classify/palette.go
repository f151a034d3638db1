package classify

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
)

// DecileRamp is the blue-to-red ramp for ten classes, lowest value first.
var DecileRamp = []string{
	"#08306b", "#08519c", "#3182bd", "#6baed6", "#9ecae1",
	"#c6dbef", "#fcae91", "#fb6a4a", "#de2d26", "#a50f15",
}

// PaletteFor returns n colors sampled evenly along DecileRamp. n=10 returns
// the ramp itself.
func PaletteFor(n int) []string {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []string{DecileRamp[0]}
	}
	stops := make([]colorful.Color, len(DecileRamp))
	for i, hex := range DecileRamp {
		stops[i] = mustParseHex(hex)
	}

	out := make([]string, n)
	last := float64(len(stops) - 1)
	for i := range out {
		t := float64(i) / float64(n-1) * last
		lo := int(math.Floor(t))
		frac := t - float64(lo)
		if frac == 0 {
			out[i] = DecileRamp[lo]
			continue
		}
		out[i] = stops[lo].BlendRgb(stops[lo+1], frac).Clamped().Hex()
	}
	return out
}

// ValidatePalette checks that every entry is a #rrggbb color.
func ValidatePalette(palette []string) error {
	for i, c := range palette {
		if len(c) != 7 {
			return eris.Errorf("classify: palette entry %d: invalid color %q", i, c)
		}
		if _, err := colorful.Hex(c); err != nil {
			return eris.Wrapf(err, "classify: palette entry %d", i)
		}
	}
	return nil
}

func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("classify: " + err.Error())
	}
	return c
}
