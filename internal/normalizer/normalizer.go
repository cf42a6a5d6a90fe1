// Package normalizer maps provider-neutral raw offers onto the canonical
// FlightOption model. Everything here is pure: no I/O, no caching, and the
// raw input is never modified.
package normalizer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/navuara/flightsearch/internal/models"
	"github.com/navuara/flightsearch/internal/providers"
	"github.com/navuara/flightsearch/internal/timezone"
)

var (
	ErrNoItinerary    = errors.New("offer has no itinerary")
	ErrEmptyItinerary = errors.New("itinerary has no segments")
	ErrBadSegment     = errors.New("malformed segment")
)

// Normalizer holds the optional airport time-zone source used to read
// naive local timestamps. The zero value reads them as UTC.
type Normalizer struct {
	Locator timezone.Locator
}

func New(locator timezone.Locator) *Normalizer {
	return &Normalizer{Locator: locator}
}

// Normalize converts one raw offer. A non-nil error means the offer is
// malformed and must be dropped; it never means the whole page is bad.
func (n *Normalizer) Normalize(raw providers.RawOffer, carriers map[string]string, requestedCurrency string) (models.FlightOption, error) {
	if len(raw.Itineraries) == 0 {
		return models.FlightOption{}, ErrNoItinerary
	}

	outbound, err := n.itinerary(raw.Itineraries[0], carriers)
	if err != nil {
		return models.FlightOption{}, fmt.Errorf("outbound: %w", err)
	}

	opt := models.FlightOption{
		ID:                 raw.ID,
		PriceText:          raw.PriceTotal,
		Currency:           strings.ToUpper(raw.Currency),
		PrimaryCarrierCode: outbound.Legs[0].CarrierCode,
		PrimaryCarrierName: outbound.Legs[0].CarrierName,
		Outbound:           outbound,
	}
	if opt.Currency == "" {
		opt.Currency = strings.ToUpper(requestedCurrency)
	}
	if p, ok := parsePrice(raw.PriceTotal); ok {
		opt.PriceTotal = &p
	}
	if raw.BookableSeats != nil {
		seats := *raw.BookableSeats
		opt.BookableSeats = &seats
	}

	// An empty return itinerary leaves the offer one-way.
	if len(raw.Itineraries) > 1 && len(raw.Itineraries[1].Segments) > 0 {
		inbound, err := n.itinerary(raw.Itineraries[1], carriers)
		if err != nil {
			return models.FlightOption{}, fmt.Errorf("inbound: %w", err)
		}
		opt.Inbound = &inbound
		opt.HasReturn = true
	}
	return opt, nil
}

// NormalizeAll normalizes a page, keeping input order and skipping malformed
// offers. It returns how many offers were dropped.
func (n *Normalizer) NormalizeAll(page providers.OfferPage, requestedCurrency string) ([]models.FlightOption, int) {
	options := make([]models.FlightOption, 0, len(page.Offers))
	dropped := 0
	for _, raw := range page.Offers {
		opt, err := n.Normalize(raw, page.Carriers, requestedCurrency)
		if err != nil {
			dropped++
			continue
		}
		options = append(options, opt)
	}
	return options, dropped
}

func (n *Normalizer) itinerary(raw providers.RawItinerary, carriers map[string]string) (models.Itinerary, error) {
	if len(raw.Segments) == 0 {
		return models.Itinerary{}, ErrEmptyItinerary
	}

	legs := make([]models.Leg, 0, len(raw.Segments))
	for i, s := range raw.Segments {
		leg, err := n.leg(s, carriers)
		if err != nil {
			return models.Itinerary{}, fmt.Errorf("segment %d: %w", i, err)
		}
		legs = append(legs, leg)
	}

	it := models.Itinerary{
		Legs:  legs,
		Stops: len(legs) - 1,
	}

	if minutes, err := ParseISODuration(raw.Duration); err == nil {
		it.DurationMinutes = minutes
		it.Duration = raw.Duration
	} else {
		elapsed := legs[len(legs)-1].ArriveAt.Sub(legs[0].DepartAt)
		minutes := int(math.Max(0, elapsed.Minutes()))
		it.DurationMinutes = minutes
		it.Duration = FormatISODuration(minutes)
	}
	return it, nil
}

func (n *Normalizer) leg(s providers.RawSegment, carriers map[string]string) (models.Leg, error) {
	code := strings.ToUpper(s.CarrierCode)
	from := strings.ToUpper(s.DepartureIATA)
	to := strings.ToUpper(s.ArrivalIATA)
	if from == "" || to == "" {
		return models.Leg{}, fmt.Errorf("%w: missing airport", ErrBadSegment)
	}

	departAt, err := timezone.ParseAtAirport(s.DepartureAt, from, n.Locator)
	if err != nil {
		return models.Leg{}, fmt.Errorf("%w: departure time: %v", ErrBadSegment, err)
	}
	arriveAt, err := timezone.ParseAtAirport(s.ArrivalAt, to, n.Locator)
	if err != nil {
		return models.Leg{}, fmt.Errorf("%w: arrival time: %v", ErrBadSegment, err)
	}

	name := carriers[code]
	if name == "" {
		name = code
	}

	leg := models.Leg{
		CarrierCode:  code,
		CarrierName:  name,
		FlightNumber: s.FlightNumber,
		From:         from,
		FromTerminal: optional(s.DepartureTerminal),
		DepartAt:     departAt,
		To:           to,
		ToTerminal:   optional(s.ArrivalTerminal),
		ArriveAt:     arriveAt,
	}
	if minutes, err := ParseISODuration(s.Duration); err == nil {
		leg.Duration = s.Duration
		leg.DurationMinutes = minutes
	} else if d := arriveAt.Sub(departAt); d > 0 {
		leg.DurationMinutes = int(d.Minutes())
		leg.Duration = FormatISODuration(leg.DurationMinutes)
	}
	return leg, nil
}

func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
