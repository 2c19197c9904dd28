package ruleset

import (
	"fmt"
	"regexp"
	"strconv"
)

var durationPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d)$`)

var durationMultipliers = map[string]int64{
	"ms": 1,
	"s":  1000,
	"m":  60 * 1000,
	"h":  60 * 60 * 1000,
	"d":  24 * 60 * 60 * 1000,
}

// ParseDuration canonicalizes a duration literal (e.g. "5s", "200ms") to
// integer milliseconds.
func ParseDuration(literal string) (int64, error) {
	m := durationPattern.FindStringSubmatch(literal)
	if m == nil {
		return 0, fmt.Errorf("invalid duration literal %q", literal)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration literal %q: %w", literal, err)
	}
	return n * durationMultipliers[m[2]], nil
}
