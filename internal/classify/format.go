package classify

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCurrency renders whole dollars with grouping, e.g. "$1,250,000".
func FormatCurrency(v float64) string {
	if v < 0 {
		return "-" + printer.Sprintf("$%.0f", math.Abs(v))
	}
	return printer.Sprintf("$%.0f", v)
}

// FormatCount renders an integer with grouping, e.g. "12,408".
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatCompact renders a dollar amount for legends: "$950", "$620K",
// "$1.2M", "$3.4B".
func FormatCompact(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	units := []struct {
		size   float64
		suffix string
		prec   int
	}{
		{1e9, "B", 1},
		{1e6, "M", 1},
		{1e3, "K", 0},
	}
	for i, u := range units {
		if v < u.size {
			continue
		}
		scaled := roundTo(v/u.size, u.prec)
		// 999,999 rounds to 1000K; promote to the next unit.
		if scaled >= 1000 && i > 0 {
			next := units[i-1]
			return sign + "$" + trimZero(strconv.FormatFloat(roundTo(v/next.size, next.prec), 'f', next.prec, 64)) + next.suffix
		}
		return sign + "$" + trimZero(strconv.FormatFloat(scaled, 'f', u.prec, 64)) + u.suffix
	}
	return sign + "$" + strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

func roundTo(v float64, prec int) float64 {
	p := math.Pow(10, float64(prec))
	return math.Round(v*p) / p
}

func trimZero(s string) string {
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
