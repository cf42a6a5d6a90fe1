package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// OfferQuery is a single upstream flight-offer request.
type OfferQuery struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Adults        int
	Currency      string
	Max           int
	NonStop       bool
}

// OfferSource issues one flight-offer query. Implementations own credentials,
// timeouts and retries; they never cache or rank.
type OfferSource interface {
	Name() string
	FetchOffers(ctx context.Context, q OfferQuery) (OfferPage, error)
}

// OfferPage is one upstream response mapped onto provider-neutral records.
type OfferPage struct {
	Offers   []RawOffer
	Carriers map[string]string
}

// RawOffer holds an offer's fields exactly as the provider sent them. Empty
// strings mean the provider omitted the field.
type RawOffer struct {
	ID            string
	PriceTotal    string
	Currency      string
	BookableSeats *int
	Itineraries   []RawItinerary
}

type RawItinerary struct {
	Duration string
	Segments []RawSegment
}

type RawSegment struct {
	CarrierCode       string
	FlightNumber      string
	DepartureIATA     string
	DepartureTerminal string
	DepartureAt       string
	ArrivalIATA       string
	ArrivalTerminal   string
	ArrivalAt         string
	Duration          string
}

type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindServerError ErrorKind = "server_error"
	KindBadRequest  ErrorKind = "bad_request"
	KindNetwork     ErrorKind = "network"
)

type UpstreamError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the client should retry the call itself.
func (e *UpstreamError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindServerError:
		return true
	default:
		return false
	}
}

// Transient reports whether the caller may retry the whole search later.
func (e *UpstreamError) Transient() bool {
	return e.Kind != KindBadRequest
}

func NewUpstreamError(provider string, kind ErrorKind, statusCode int, message string, err error) *UpstreamError {
	return &UpstreamError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// AsUpstreamError extracts an UpstreamError from err's chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// KindForStatus classifies a non-2xx HTTP status.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServerError
	default:
		return KindBadRequest
	}
}
