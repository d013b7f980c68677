package ir

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTime reads a document time value. It accepts Go duration strings
// ("2s", "250ms") and bare numbers, which are seconds ("2.5").
func ParseTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time value")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative time %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative time %q", s)
	}
	return d, nil
}

// FormatTime renders a time for traces; TimeNone renders as "none".
func FormatTime(d time.Duration) string {
	if d == TimeNone {
		return "none"
	}
	return d.String()
}
