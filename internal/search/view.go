package search

import (
	"time"

	"github.com/navuara/flightsearch/internal/filter"
	"github.com/navuara/flightsearch/internal/models"
	"github.com/navuara/flightsearch/pkg/currency"
)

// NewSearchResponse narrows resp by filters and renders it for clients.
// The cached result itself is left untouched.
func NewSearchResponse(q models.SearchQuery, filters *models.SearchFilters, resp Response, elapsed time.Duration) models.SearchResponse {
	options := filter.Apply(resp.Result.Options, filters)

	views := make([]models.OptionView, len(options))
	for i, o := range options {
		views[i] = models.OptionView{
			FlightOption:   o,
			PriceFormatted: currency.Format(o.PriceTotal, o.Currency),
		}
	}

	return models.SearchResponse{
		SearchCriteria: models.SearchCriteria{
			Origin:        q.Origin,
			Destination:   q.Destination,
			DepartureDate: q.DepartureDate,
			ReturnDate:    q.ReturnDate,
			Adults:        q.Adults,
			Currency:      q.Currency,
			MaxResults:    q.MaxResults,
			Filters:       filters,
		},
		Metadata: models.SearchMetadata{
			TotalResults: len(views),
			StrategyUsed: resp.Result.StrategyUsed,
			StrategyNote: resp.Result.StrategyNote,
			SearchTimeMs: elapsed.Milliseconds(),
			CacheHit:     resp.CacheHit,
			SearchID:     resp.Result.SearchID,
		},
		Resolved: resp.Result.Resolved,
		Results:  views,
	}
}
