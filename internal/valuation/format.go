package valuation

import (
	"math"
	"strconv"
	"strings"
)

// FormatUSD renders a fiat amount for display: "$1,234.56" below a million,
// "$1.23 M" and "$4.56 B" above. Unknown values render as an empty string.
func FormatUSD(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return ""
	}
	abs := math.Abs(*v)
	switch {
	case abs >= 1e9:
		return "$" + strconv.FormatFloat(*v/1e9, 'f', 2, 64) + " B"
	case abs >= 1e6:
		return "$" + strconv.FormatFloat(*v/1e6, 'f', 2, 64) + " M"
	default:
		return "$" + groupThousands(strconv.FormatFloat(*v, 'f', 2, 64))
	}
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
