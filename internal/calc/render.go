package calc

import (
	"math"
	"strconv"
	"strings"
)

// scientificThreshold is the magnitude from which values switch to %.8e.
const scientificThreshold = 1000

// Render formats every used variable as "<letter> = <value>\n", a to z.
// Unused variables produce nothing, so a fresh session renders as "".
func Render(v *Variables) string {
	var b strings.Builder
	for i, used := range v.Used {
		if !used {
			continue
		}
		b.WriteByte(Letter(i))
		b.WriteString(" = ")
		b.WriteString(FormatValue(v.Values[i]))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatValue renders one value: fixed-point with 6 decimals below 1000 in
// magnitude, scientific with 8 decimals otherwise. Non-finite values are
// spelled the way C's printf spells them.
func FormatValue(x float64) string {
	switch {
	case math.IsNaN(x):
		if math.Signbit(x) {
			return "-nan"
		}
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	if math.Abs(x) < scientificThreshold {
		return strconv.FormatFloat(x, 'f', 6, 64)
	}
	return strconv.FormatFloat(x, 'e', 8, 64)
}
