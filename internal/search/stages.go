package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/navuara/flightsearch/internal/models"
	"github.com/navuara/flightsearch/internal/providers"
)

// Stage is one tier of the cascade: an ordered list of upstream queries
// plus the connection filter applied to each query's options.
type Stage struct {
	Strategy       models.Strategy
	MaxConnections int
	Attempts       []Attempt
}

// Attempt is a single upstream query and the criteria it stands for.
type Attempt struct {
	Query    providers.OfferQuery
	Resolved models.ResolvedSearch
}

// Plan lays out the cascade for q: DIRECT, LIMITED_STOPS, then ALTERNATES.
func (o *Orchestrator) Plan(q models.SearchQuery) []Stage {
	exact := o.attempt(q, q.Origin, q.Destination, 0, o.wideFetch(q))

	direct := o.attempt(q, q.Origin, q.Destination, 0, max(o.config.DirectFetchSize, q.MaxResults))
	direct.Query.NonStop = true

	return []Stage{
		{Strategy: models.StrategyDirect, MaxConnections: 0, Attempts: []Attempt{direct}},
		{Strategy: models.StrategyLimitedStops, MaxConnections: o.config.MaxConnections, Attempts: []Attempt{exact}},
		{Strategy: models.StrategyAlternates, MaxConnections: o.config.MaxConnections, Attempts: o.alternateAttempts(q)},
	}
}

// alternateAttempts enumerates date offsets, then origin candidates, then
// destination candidates. The exact pair on the requested date repeats
// LIMITED_STOPS and is skipped, as are shifted dates before today.
func (o *Orchestrator) alternateAttempts(q models.SearchQuery) []Attempt {
	origins := o.alternates.Alternates(q.Origin)
	destinations := o.alternates.Alternates(q.Destination)
	today := o.now().UTC().Format(models.DateLayout)
	size := o.wideFetch(q)

	var attempts []Attempt
	for _, offset := range o.config.DateOffsets {
		shifted := q.ShiftDates(offset)
		if offset != 0 && shifted.DepartureDate < today {
			continue
		}
		for _, origin := range origins {
			for _, dest := range destinations {
				if offset == 0 && origin == q.Origin && dest == q.Destination {
					continue
				}
				if origin == dest {
					continue
				}
				attempts = append(attempts, o.attempt(q, origin, dest, offset, size))
				if len(attempts) == o.config.MaxAlternateProbes {
					return attempts
				}
			}
		}
	}
	return attempts
}

func (o *Orchestrator) attempt(q models.SearchQuery, origin, dest string, offset, size int) Attempt {
	shifted := q.ShiftDates(offset)
	return Attempt{
		Query: providers.OfferQuery{
			Origin:        origin,
			Destination:   dest,
			DepartureDate: shifted.DepartureDate,
			ReturnDate:    shifted.ReturnDate,
			Adults:        q.Adults,
			Currency:      q.Currency,
			Max:           size,
		},
		Resolved: models.ResolvedSearch{
			Origin:        origin,
			Destination:   dest,
			DepartureDate: shifted.DepartureDate,
			ReturnDate:    shifted.ReturnDate,
			DateOffset:    offset,
		},
	}
}

func (o *Orchestrator) wideFetch(q models.SearchQuery) int {
	return max(o.config.WideFetchSize, q.MaxResults)
}

// runParallel probes attempts in batches and picks the lowest-indexed
// attempt that produced options, so the outcome matches a sequential run.
// An error only aborts the stage if no earlier attempt succeeded.
func (o *Orchestrator) runParallel(ctx context.Context, st Stage, currency string) ([]models.FlightOption, Attempt, error) {
	type probeResult struct {
		options []models.FlightOption
		err     error
	}

	for start := 0; start < len(st.Attempts); start += o.config.Parallelism {
		end := min(start+o.config.Parallelism, len(st.Attempts))
		batch := st.Attempts[start:end]
		results := make([]probeResult, len(batch))

		var wg sync.WaitGroup
		for i, a := range batch {
			wg.Add(1)
			go func(i int, a Attempt) {
				defer wg.Done()
				options, err := o.probe(ctx, st, a, currency)
				results[i] = probeResult{options: options, err: err}
			}(i, a)
		}
		wg.Wait()

		for i, r := range results {
			if r.err != nil {
				return nil, Attempt{}, r.err
			}
			if len(r.options) > 0 {
				return r.options, batch[i], nil
			}
		}
	}
	return nil, Attempt{}, nil
}

func (o *Orchestrator) note(q models.SearchQuery, oc outcome) string {
	switch oc.strategy {
	case models.StrategyDirect:
		return "Direct flights found"
	case models.StrategyLimitedStops:
		return fmt.Sprintf("Showing flights with connections (up to %d)", o.config.MaxConnections)
	case models.StrategyAlternates:
		r := oc.resolved
		msg := fmt.Sprintf("No direct flights; showing connections (up to %d), ", o.config.MaxConnections)
		if r.Origin != q.Origin || r.Destination != q.Destination {
			msg += fmt.Sprintf("alternate airports (%s→%s)", r.Origin, r.Destination)
		} else {
			msg += "same airport pair"
		}
		if r.DateOffset != 0 {
			msg += fmt.Sprintf(", nearby date (%s)", r.DepartureDate)
		}
		return msg
	default:
		return "No flights found. Try different dates or nearby airports."
	}
}
