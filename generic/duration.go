package generic

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ParsedDuration is the result of parsing a free-text span such as "2 weeks".
// Valid is false when the input was malformed; Millis is then 0. Callers that
// only need the number can ignore Valid, zero contributes nothing to a sum.
type ParsedDuration struct {
	Millis int64
	Valid  bool
}

// Duration returns the parsed span as a time.Duration.
func (p ParsedDuration) Duration() time.Duration {
	return time.Duration(p.Millis) * time.Millisecond
}

var durationUnits = []struct {
	name   string
	millis int64
}{
	{"minute", MillisPerMinute},
	{"hour", MillisPerHour},
	{"day", MillisPerDay},
	{"week", MillisPerWeek},
}

// ParseDuration parses "<number> <unit>" where the unit token starts with
// minute, hour, day or week (so both singular and plural match),
// case-insensitive. Anything else, including fewer than two tokens or a
// negative amount, yields an invalid zero result.
func ParseDuration(s string) ParsedDuration {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) < 2 {
		return ParsedDuration{}
	}

	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ParsedDuration{}
	}

	per, ok := unitMillis(fields[1])
	if !ok {
		return ParsedDuration{}
	}
	return ParsedDuration{Millis: int64(math.Round(amount * float64(per))), Valid: true}
}

// DurationMillis is the silent-fallback form of ParseDuration: malformed input
// contributes 0 milliseconds.
func DurationMillis(s string) int64 {
	return ParseDuration(s).Millis
}

func unitMillis(token string) (int64, bool) {
	for _, u := range durationUnits {
		if strings.HasPrefix(token, u.name) {
			return u.millis, true
		}
	}
	return 0, false
}
