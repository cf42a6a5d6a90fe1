package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"

	DefaultCurrency   = "USD"
	DefaultMaxResults = 20
	MaxResultsLimit   = 200
)

var (
	iataPattern     = regexp.MustCompile(`^[A-Z]{3}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// SearchRequest is the wire shape accepted by the HTTP and CLI surfaces.
// GET binds from the query string, POST from a JSON body.
type SearchRequest struct {
	Origin        string   `json:"origin" query:"origin"`
	Destination   string   `json:"destination" query:"destination"`
	DepartureDate string   `json:"departure_date" query:"date"`
	ReturnDate    string   `json:"return_date,omitempty" query:"return_date"`
	Adults        *int     `json:"adults,omitempty" query:"adults"`
	Currency      string   `json:"currency,omitempty" query:"currency"`
	MaxResults    *int     `json:"max,omitempty" query:"max"`
	MaxPrice      *float64 `json:"max_price,omitempty" query:"max_price"`
	MaxStops      *int     `json:"max_stops,omitempty" query:"max_stops"`
	Airlines      []string `json:"airlines,omitempty" query:"airlines"`
}

// SearchQuery is the validated, canonical search input. It is a comparable
// value type: two field-wise equal queries are interchangeable.
type SearchQuery struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Adults        int
	Currency      string
	MaxResults    int
}

// SearchFilters narrows an already resolved result. Filters never take part
// in the cache key.
type SearchFilters struct {
	MaxPrice *float64 `json:"max_price,omitempty"`
	MaxStops *int     `json:"max_stops,omitempty"`
	Airlines []string `json:"airlines,omitempty"`
}

// ToQuery normalizes the request (trim, upper-case, defaults, max clamp)
// and validates the result.
func (r SearchRequest) ToQuery() (SearchQuery, error) {
	q := SearchQuery{
		Origin:        strings.ToUpper(strings.TrimSpace(r.Origin)),
		Destination:   strings.ToUpper(strings.TrimSpace(r.Destination)),
		DepartureDate: strings.TrimSpace(r.DepartureDate),
		ReturnDate:    strings.TrimSpace(r.ReturnDate),
		Adults:        1,
		Currency:      strings.ToUpper(strings.TrimSpace(r.Currency)),
		MaxResults:    DefaultMaxResults,
	}
	if r.Adults != nil {
		q.Adults = *r.Adults
	}
	if q.Currency == "" {
		q.Currency = DefaultCurrency
	}
	if r.MaxResults != nil {
		q.MaxResults = ClampMaxResults(*r.MaxResults)
	}

	if err := q.Validate(); err != nil {
		return SearchQuery{}, err
	}
	return q, nil
}

// Filters extracts the post-resolution filters, or nil when none were given.
func (r SearchRequest) Filters() *SearchFilters {
	if r.MaxPrice == nil && r.MaxStops == nil && len(r.Airlines) == 0 {
		return nil
	}
	airlines := make([]string, 0, len(r.Airlines))
	for _, a := range r.Airlines {
		for _, code := range strings.Split(a, ",") {
			if code = strings.TrimSpace(code); code != "" {
				airlines = append(airlines, strings.ToUpper(code))
			}
		}
	}
	return &SearchFilters{
		MaxPrice: r.MaxPrice,
		MaxStops: r.MaxStops,
		Airlines: airlines,
	}
}

func ClampMaxResults(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

func (q SearchQuery) Validate() error {
	if !iataPattern.MatchString(q.Origin) {
		return fieldError(ErrInvalidOrigin, q.Origin)
	}
	if !iataPattern.MatchString(q.Destination) {
		return fieldError(ErrInvalidDestination, q.Destination)
	}
	dep, err := parseDate(q.DepartureDate)
	if err != nil {
		return fieldError(ErrInvalidDepartureDate, q.DepartureDate)
	}
	if q.ReturnDate != "" {
		ret, err := parseDate(q.ReturnDate)
		if err != nil {
			return fieldError(ErrInvalidReturnDate, q.ReturnDate)
		}
		if ret.Before(dep) {
			return ErrReturnBeforeDeparture
		}
	}
	if q.Adults < 1 {
		return ErrInvalidAdults
	}
	if !currencyPattern.MatchString(q.Currency) {
		return fieldError(ErrInvalidCurrency, q.Currency)
	}
	if q.MaxResults < 1 || q.MaxResults > MaxResultsLimit {
		return ErrInvalidMaxResults
	}
	return nil
}

func (q SearchQuery) IsRoundTrip() bool {
	return q.ReturnDate != ""
}

// Departure returns the departure date at midnight UTC. It assumes a
// validated query.
func (q SearchQuery) Departure() time.Time {
	t, _ := parseDate(q.DepartureDate)
	return t
}

// ShiftDates returns a copy with departure (and return, if any) moved by
// offset days, keeping the trip length.
func (q SearchQuery) ShiftDates(offset int) SearchQuery {
	if offset == 0 {
		return q
	}
	shifted := q
	shifted.DepartureDate = q.Departure().AddDate(0, 0, offset).Format(DateLayout)
	if q.ReturnDate != "" {
		ret, _ := parseDate(q.ReturnDate)
		shifted.ReturnDate = ret.AddDate(0, 0, offset).Format(DateLayout)
	}
	return shifted
}

func parseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return time.Parse(DateLayout, s)
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrInvalidOrigin         ValidationError = "origin must be a 3-letter IATA code (e.g. MEX)"
	ErrInvalidDestination    ValidationError = "destination must be a 3-letter IATA code (e.g. CUN)"
	ErrInvalidDepartureDate  ValidationError = "departure date must be a valid YYYY-MM-DD date"
	ErrInvalidReturnDate     ValidationError = "return date must be a valid YYYY-MM-DD date"
	ErrReturnBeforeDeparture ValidationError = "return date cannot be before departure date"
	ErrInvalidAdults         ValidationError = "adults must be an integer >= 1"
	ErrInvalidCurrency       ValidationError = "currency must be a 3-letter ISO code (e.g. USD)"
	ErrInvalidMaxResults     ValidationError = "max results must be between 1 and 200"
)

// FieldError carries the rejected value alongside the validation sentinel.
type FieldError struct {
	Err   ValidationError
	Value string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s (got %q)", e.Err, e.Value)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(err ValidationError, value string) error {
	return &FieldError{Err: err, Value: value}
}
