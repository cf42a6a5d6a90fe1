package filter

import (
	"strings"

	"github.com/navuara/flightsearch/internal/models"
)

// WithinConnections keeps options whose every itinerary has at most max
// connections. Order is preserved.
func WithinConnections(options []models.FlightOption, max int) []models.FlightOption {
	result := make([]models.FlightOption, 0, len(options))

	for _, o := range options {
		if o.MaxStops() <= max {
			result = append(result, o)
		}
	}

	return result
}

// Apply narrows an already ranked list by the caller's filters. Order is
// preserved and the input is not modified.
func Apply(options []models.FlightOption, filters *models.SearchFilters) []models.FlightOption {
	if filters == nil {
		return options
	}

	result := make([]models.FlightOption, 0, len(options))

	for _, o := range options {
		if matchesFilters(o, filters) {
			result = append(result, o)
		}
	}

	return result
}

func matchesFilters(o models.FlightOption, filters *models.SearchFilters) bool {
	if filters.MaxPrice != nil {
		// An unknown price can't be shown to be under the cap.
		if o.PriceTotal == nil || *o.PriceTotal > *filters.MaxPrice {
			return false
		}
	}

	if filters.MaxStops != nil && o.MaxStops() > *filters.MaxStops {
		return false
	}

	if len(filters.Airlines) > 0 {
		found := false
		for _, airline := range filters.Airlines {
			if strings.EqualFold(o.PrimaryCarrierCode, airline) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}
