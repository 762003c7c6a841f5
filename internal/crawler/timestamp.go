package crawler

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// postedPattern matches the German relative phrase shown on listings,
// e.g. "Erschienen: vor 3 Stunden" or "vor 1 Tag".
var postedPattern = regexp.MustCompile(`vor (\d+) (Stunden|Stunde|Tagen|Tage|Tag)\b`)

// ParseListedAt converts a relative "posted" phrase into an absolute time
// measured back from now. Unrecognized phrases resolve to now.
func ParseListedAt(phrase string, now time.Time) time.Time {
	m := postedPattern.FindStringSubmatch(phrase)
	if m == nil {
		return now
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return now
	}
	unit := time.Hour
	if m[2] != "Stunden" && m[2] != "Stunde" {
		unit = 24 * time.Hour
	}
	// Counts too large for a Duration are nonsense; treat them as unrecognized.
	if amount > math.MaxInt64/int64(unit) {
		return now
	}
	if unit == time.Hour {
		return now.Add(-time.Duration(amount) * time.Hour)
	}
	return now.AddDate(0, 0, -int(amount))
}
