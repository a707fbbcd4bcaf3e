package preprocessing

import (
	"math"
	"strconv"
	"strings"
)

var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"nan":  {},
	"null": {},
}

// IsMissing reports whether a raw cell denotes a missing value.
// "", "NA", "NaN" and "null" are recognised case-insensitively.
func IsMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseNumeric parses a raw cell. Missing cells yield NaN and ok=true;
// ok is false only for non-numeric text.
func ParseNumeric(s string) (v float64, ok bool) {
	if IsMissing(s) {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
