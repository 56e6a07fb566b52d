// internal/harvest/normalize.go
package harvest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// countPattern matches the first number in a counter, with optional
// thousands separators, decimal part and magnitude suffix. A suffix glued
// to the number always applies ("2.5Kviews"); a detached one must stand
// alone so "5 months" stays 5.
var countPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)(?:([kKmM])|\s+([kKmM])(?:[^\pL]|$))?`)

// NormalizeCount parses a human-formatted counter such as "1,234",
// "2.5K" or "3M views" into an integer. It returns nil when raw
// contains no digits. Fractions left after scaling are rounded half away
// from zero.
func NormalizeCount(raw string) *int64 {
	m := countPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}

	digits := strings.ReplaceAll(m[1], ",", "")
	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}

	switch strings.ToUpper(m[2] + m[3]) {
	case "K":
		value *= 1_000
	case "M":
		value *= 1_000_000
	}

	n := int64(math.Round(value))
	return &n
}
