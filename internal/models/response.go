package models

type SearchMetadata struct {
	TotalResults int      `json:"total_results"`
	StrategyUsed Strategy `json:"strategy_used"`
	StrategyNote string   `json:"strategy_note"`
	SearchTimeMs int64    `json:"search_time_ms"`
	CacheHit     bool     `json:"cache_hit"`
	SearchID     string   `json:"search_id"`
}

type SearchCriteria struct {
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	DepartureDate string         `json:"departure_date"`
	ReturnDate    string         `json:"return_date,omitempty"`
	Adults        int            `json:"adults"`
	Currency      string         `json:"currency"`
	MaxResults    int            `json:"max"`
	Filters       *SearchFilters `json:"filters,omitempty"`
}

// OptionView is a FlightOption plus presentation-only fields.
type OptionView struct {
	FlightOption
	PriceFormatted string `json:"price_formatted"`
}

type SearchResponse struct {
	SearchCriteria SearchCriteria  `json:"search_criteria"`
	Metadata       SearchMetadata  `json:"metadata"`
	Resolved       *ResolvedSearch `json:"resolved,omitempty"`
	Results        []OptionView    `json:"results"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Retryable bool   `json:"retryable"`
}
