package normalizer

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseISODuration converts an ISO-8601 duration such as "PT2H35M" or
// "P1DT4H" into whole minutes. Seconds are truncated.
func ParseISODuration(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 3 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}

	var total float64
	inTime := false
	num := ""
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			num += string(r)
			continue
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
			}
			inTime = true
			continue
		}

		if num == "" {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		num = ""

		switch {
		case r == 'W' && !inTime:
			total += v * 7 * 24 * 60
		case r == 'D' && !inTime:
			total += v * 24 * 60
		case r == 'H' && inTime:
			total += v * 60
		case r == 'M' && inTime:
			total += v
		case r == 'S' && inTime:
			total += v / 60
		default:
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: unexpected %q", s, r)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: dangling number", s)
	}
	return int(total), nil
}

// FormatISODuration renders minutes in the provider's "PT#H#M" style.
func FormatISODuration(minutes int) string {
	if minutes <= 0 {
		return "PT0M"
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("PT%dM", m)
	case m == 0:
		return fmt.Sprintf("PT%dH", h)
	default:
		return fmt.Sprintf("PT%dH%dM", h, m)
	}
}
