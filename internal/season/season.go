// Package season derives the football season key used to index a player's
// team history.
package season

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key returns the season containing t, e.g. "2024-2025". Seasons run from
// August to July.
func Key(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.August {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}

// Normalize turns a season label such as "2024-25", "2024/25" or "2024-2025"
// into the Key form. It reports false when label is not a season span.
func Normalize(label string) (string, bool) {
	label = strings.TrimSpace(label)
	label = strings.ReplaceAll(label, "/", "-")
	start, end, ok := strings.Cut(label, "-")
	if !ok || len(start) != 4 {
		return "", false
	}
	from, err := strconv.Atoi(start)
	if err != nil {
		return "", false
	}

	var to int
	switch len(end) {
	case 2:
		suffix, err := strconv.Atoi(end)
		if err != nil {
			return "", false
		}
		to = from/100*100 + suffix
		if to <= from {
			to += 100
		}
	case 4:
		to, err = strconv.Atoi(end)
		if err != nil {
			return "", false
		}
	default:
		return "", false
	}

	if to != from+1 {
		return "", false
	}
	return fmt.Sprintf("%d-%d", from, to), true
}
