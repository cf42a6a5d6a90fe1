package ranking

import (
	"math"
	"sort"

	"github.com/navuara/flightsearch/internal/models"
)

// Rank returns a new slice ordered by price, then outbound stops, then
// outbound duration, all ascending. A missing price sorts last. Options
// with equal keys keep their input order.
func Rank(options []models.FlightOption) []models.FlightOption {
	ranked := make([]models.FlightOption, len(options))
	copy(ranked, options)

	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
	return ranked
}

func Less(a, b models.FlightOption) bool {
	pa, pb := priceKey(a), priceKey(b)
	if pa != pb {
		return pa < pb
	}
	sa, sb := a.Outbound.StopCount(), b.Outbound.StopCount()
	if sa != sb {
		return sa < sb
	}
	return a.Outbound.DurationMinutes < b.Outbound.DurationMinutes
}

func priceKey(o models.FlightOption) float64 {
	if o.PriceTotal == nil || math.IsNaN(*o.PriceTotal) {
		return math.Inf(1)
	}
	return *o.PriceTotal
}
