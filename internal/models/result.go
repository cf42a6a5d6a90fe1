package models

import "errors"

// Strategy names the cascade stage that produced a SearchResult.
type Strategy string

const (
	StrategyDirect       Strategy = "DIRECT"
	StrategyLimitedStops Strategy = "LIMITED_STOPS"
	StrategyAlternates   Strategy = "ALTERNATES"
	StrategyExhausted    Strategy = "EXHAUSTED"
)

// ResolvedSearch records the concrete criteria that produced the options,
// which differ from the request when the ALTERNATES stage succeeded.
type ResolvedSearch struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	DateOffset    int    `json:"date_offset_days"`
}

type SearchResult struct {
	SearchID     string          `json:"search_id"`
	Options      []FlightOption  `json:"options"`
	StrategyUsed Strategy        `json:"strategy_used"`
	StrategyNote string          `json:"strategy_note"`
	Resolved     *ResolvedSearch `json:"resolved,omitempty"`
}

func (r SearchResult) Empty() bool {
	return len(r.Options) == 0
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
