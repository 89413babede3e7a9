package trending

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// countPattern matches the first numeral and an optional magnitude suffix.
// The suffix must stand alone, so "5 members" is 5 and not 5m.
var countPattern = regexp.MustCompile(`(\d+(?:\.\d+)?|\.\d+)(?:\s*([kKmM])\b)?`)

// ParseCount converts display counters such as "1,234", "4.1k" or
// "1,234 stars today" into an integer. Text without a numeral yields 0 and
// values beyond int64 saturate at math.MaxInt64.
func ParseCount(s string) int64 {
	n, _ := parseCount(s)
	return n
}

// parseCount reports whether a numeral was found so callers can fall back
// to other sources.
func parseCount(s string) (int64, bool) {
	m := countPattern.FindStringSubmatch(strings.ReplaceAll(s, ",", ""))
	if m == nil {
		return 0, false
	}
	whole, frac, _ := strings.Cut(m[1], ".")

	scale := 0
	switch m[2] {
	case "k", "K":
		scale = 3
	case "m", "M":
		scale = 6
	}
	if len(frac) > scale {
		frac = frac[:scale]
	} else {
		frac += strings.Repeat("0", scale-len(frac))
	}

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		// Only range errors are possible on a pure digit string.
		return math.MaxInt64, true
	}
	return n, true
}
