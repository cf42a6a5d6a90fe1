package models

import "time"

type Leg struct {
	CarrierCode     string    `json:"carrier_code"`
	CarrierName     string    `json:"carrier_name"`
	FlightNumber    string    `json:"flight_number"`
	From            string    `json:"from"`
	FromTerminal    *string   `json:"from_terminal,omitempty"`
	DepartAt        time.Time `json:"depart_at"`
	To              string    `json:"to"`
	ToTerminal      *string   `json:"to_terminal,omitempty"`
	ArriveAt        time.Time `json:"arrive_at"`
	Duration        string    `json:"duration,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Itinerary is one directional trip. Legs is never empty for an itinerary
// that made it through normalization.
type Itinerary struct {
	Legs            []Leg  `json:"legs"`
	Stops           int    `json:"stops"`
	Duration        string `json:"duration"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (it Itinerary) StopCount() int {
	if len(it.Legs) == 0 {
		return 0
	}
	return len(it.Legs) - 1
}

func (it Itinerary) Origin() string {
	if len(it.Legs) == 0 {
		return ""
	}
	return it.Legs[0].From
}

func (it Itinerary) Destination() string {
	if len(it.Legs) == 0 {
		return ""
	}
	return it.Legs[len(it.Legs)-1].To
}

// FlightOption is the canonical normalized offer. PriceTotal is nil when
// the provider did not quote a usable total.
type FlightOption struct {
	ID                 string     `json:"id,omitempty"`
	PriceTotal         *float64   `json:"price_total"`
	PriceText          string     `json:"price_text,omitempty"`
	Currency           string     `json:"currency"`
	PrimaryCarrierCode string     `json:"primary_carrier_code"`
	PrimaryCarrierName string     `json:"primary_carrier_name"`
	Outbound           Itinerary  `json:"outbound"`
	Inbound            *Itinerary `json:"inbound,omitempty"`
	HasReturn          bool       `json:"has_return"`
	BookableSeats      *int       `json:"bookable_seats,omitempty"`
}

// MaxStops is the largest connection count over every itinerary of the option.
func (o FlightOption) MaxStops() int {
	stops := o.Outbound.StopCount()
	if o.Inbound != nil && o.Inbound.StopCount() > stops {
		stops = o.Inbound.StopCount()
	}
	return stops
}

// Carriers lists each distinct carrier code in flown order.
func (o FlightOption) Carriers() []string {
	seen := make(map[string]bool)
	var codes []string
	add := func(it Itinerary) {
		for _, l := range it.Legs {
			if l.CarrierCode != "" && !seen[l.CarrierCode] {
				seen[l.CarrierCode] = true
				codes = append(codes, l.CarrierCode)
			}
		}
	}
	add(o.Outbound)
	if o.Inbound != nil {
		add(*o.Inbound)
	}
	return codes
}
