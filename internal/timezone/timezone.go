package timezone

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// Locator resolves the local time zone of an airport. Implementations
// return nil when the airport is unknown.
type Locator interface {
	Location(iata string) *time.Location
}

// LocatorFunc adapts a plain function to Locator.
type LocatorFunc func(iata string) *time.Location

func (f LocatorFunc) Location(iata string) *time.Location {
	return f(iata)
}

var offsetFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700", // Without colon
	"2006-01-02T15:04-07:00",
}

var localFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimeWithOffset parses provider timestamps. Values carrying an offset
// keep it; naive local times ("2025-09-01T07:35:00") are read in loc, or
// UTC when loc is nil.
func ParseTimeWithOffset(timeStr string, loc *time.Location) (time.Time, error) {
	timeStr = strings.TrimSpace(timeStr)

	for _, format := range offsetFormats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t, nil
		}
	}

	if loc == nil {
		loc = time.UTC
	}
	for _, format := range localFormats {
		if t, err := time.ParseInLocation(format, timeStr, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &time.ParseError{
		Value:   timeStr,
		Message: "unable to parse time string",
	}
}

// ParseAtAirport parses a timestamp in the local zone of the given airport.
func ParseAtAirport(timeStr, iata string, locator Locator) (time.Time, error) {
	var loc *time.Location
	if locator != nil {
		loc = locator.Location(strings.ToUpper(iata))
	}
	return ParseTimeWithOffset(timeStr, loc)
}

// LoadLocation wraps time.LoadLocation, returning nil for unknown names
// instead of failing.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil
	}
	return loc
}
