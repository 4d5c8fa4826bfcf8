package security

import (
	"strconv"
	"time"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ParseTTL reads the compact "<int><unit>" notation where unit is one of
// s, m, h or d. Anything else yields fallback and ok=false.
func ParseTTL(value string, fallback time.Duration) (d time.Duration, ok bool) {
	if len(value) < 2 {
		return fallback, false
	}
	var unit time.Duration
	switch value[len(value)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return fallback, false
	}
	digits := value[:len(value)-1]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fallback, false
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 || n > int64((1<<63-1)/int64(unit)) {
		return fallback, false
	}
	return time.Duration(n) * unit, true
}
