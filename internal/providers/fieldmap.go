package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// FieldMap is the one place a provider's response schema is described.
// Every entry is a gjson path: Offers and Carriers are relative to the
// response root, offer fields to each offer, itinerary fields to each
// itinerary, and segment fields to each segment.
type FieldMap struct {
	Version string

	Offers   string
	Carriers string

	OfferID       string
	PriceTotal    string
	Currency      string
	BookableSeats string
	Itineraries   string

	ItineraryDuration string
	Segments          string

	CarrierCode       string
	FlightNumber      string
	DepartureIATA     string
	DepartureTerminal string
	DepartureAt       string
	ArrivalIATA       string
	ArrivalTerminal   string
	ArrivalAt         string
	SegmentDuration   string
}

// AmadeusFlightOffersV2 maps GET /v2/shopping/flight-offers. The total is
// read from grandTotal, which includes fees and supplements.
var AmadeusFlightOffersV2 = FieldMap{
	Version: "amadeus/flight-offers/v2",

	Offers:   "data",
	Carriers: "dictionaries.carriers",

	OfferID:       "id",
	PriceTotal:    "price.grandTotal",
	Currency:      "price.currency",
	BookableSeats: "numberOfBookableSeats",
	Itineraries:   "itineraries",

	ItineraryDuration: "duration",
	Segments:          "segments",

	CarrierCode:       "carrierCode",
	FlightNumber:      "number",
	DepartureIATA:     "departure.iataCode",
	DepartureTerminal: "departure.terminal",
	DepartureAt:       "departure.at",
	ArrivalIATA:       "arrival.iataCode",
	ArrivalTerminal:   "arrival.terminal",
	ArrivalAt:         "arrival.at",
	SegmentDuration:   "duration",
}

var ErrSchemaMismatch = errors.New("response does not match provider schema")

// Validate checks that every field the normalizer cannot do without has a path.
func (m FieldMap) Validate() error {
	required := []struct {
		name string
		path string
	}{
		{"Offers", m.Offers},
		{"Itineraries", m.Itineraries},
		{"Segments", m.Segments},
		{"CarrierCode", m.CarrierCode},
		{"DepartureIATA", m.DepartureIATA},
		{"DepartureAt", m.DepartureAt},
		{"ArrivalIATA", m.ArrivalIATA},
		{"ArrivalAt", m.ArrivalAt},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.path) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("field map %q is missing paths for %s", m.Version, strings.Join(missing, ", "))
	}
	return nil
}

// Decode maps a raw response body onto an OfferPage. A missing offers array
// is an empty page; a present but non-array one is a schema mismatch.
func (m FieldMap) Decode(body []byte) (OfferPage, error) {
	if !gjson.ValidBytes(body) {
		return OfferPage{}, fmt.Errorf("%w: body is not valid JSON", ErrSchemaMismatch)
	}
	root := gjson.ParseBytes(body)

	page := OfferPage{Carriers: make(map[string]string)}

	if m.Carriers != "" {
		root.Get(m.Carriers).ForEach(func(code, name gjson.Result) bool {
			page.Carriers[strings.ToUpper(code.String())] = name.String()
			return true
		})
	}

	offers := root.Get(m.Offers)
	if !offers.Exists() {
		return page, nil
	}
	if !offers.IsArray() {
		return OfferPage{}, fmt.Errorf("%w: %q is not an array", ErrSchemaMismatch, m.Offers)
	}

	for _, o := range offers.Array() {
		page.Offers = append(page.Offers, m.decodeOffer(o))
	}
	return page, nil
}

func (m FieldMap) decodeOffer(o gjson.Result) RawOffer {
	offer := RawOffer{
		ID:         m.str(o, m.OfferID),
		PriceTotal: m.str(o, m.PriceTotal),
		Currency:   m.str(o, m.Currency),
	}
	if m.BookableSeats != "" {
		if seats := o.Get(m.BookableSeats); seats.Type == gjson.Number {
			n := int(seats.Int())
			offer.BookableSeats = &n
		}
	}

	for _, it := range o.Get(m.Itineraries).Array() {
		itin := RawItinerary{Duration: m.str(it, m.ItineraryDuration)}
		for _, s := range it.Get(m.Segments).Array() {
			itin.Segments = append(itin.Segments, RawSegment{
				CarrierCode:       m.str(s, m.CarrierCode),
				FlightNumber:      m.str(s, m.FlightNumber),
				DepartureIATA:     m.str(s, m.DepartureIATA),
				DepartureTerminal: m.str(s, m.DepartureTerminal),
				DepartureAt:       m.str(s, m.DepartureAt),
				ArrivalIATA:       m.str(s, m.ArrivalIATA),
				ArrivalTerminal:   m.str(s, m.ArrivalTerminal),
				ArrivalAt:         m.str(s, m.ArrivalAt),
				Duration:          m.str(s, m.SegmentDuration),
			})
		}
		offer.Itineraries = append(offer.Itineraries, itin)
	}
	return offer
}

func (m FieldMap) str(r gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSpace(r.Get(path).String())
}
