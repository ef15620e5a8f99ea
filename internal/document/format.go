package document

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders f in its shortest round-tripping form. Integral values
// keep a trailing ".0", and exponent notation is used only when the decimal
// exponent is below -4 or at least 16.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	if f != 0 {
		_, expPart, _ := strings.Cut(sci, "e")
		exp, err := strconv.Atoi(expPart)
		if err == nil && (exp < -4 || exp >= 16) {
			return sci
		}
	}

	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
