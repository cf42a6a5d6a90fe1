// Package search resolves a SearchQuery into ranked flight options by
// walking an ordered cascade of progressively looser upstream queries.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/navuara/flightsearch/internal/airports"
	"github.com/navuara/flightsearch/internal/cache"
	"github.com/navuara/flightsearch/internal/filter"
	"github.com/navuara/flightsearch/internal/metrics"
	"github.com/navuara/flightsearch/internal/models"
	"github.com/navuara/flightsearch/internal/normalizer"
	"github.com/navuara/flightsearch/internal/providers"
	"github.com/navuara/flightsearch/internal/ranking"
)

type Config struct {
	// MaxConnections bounds connections per itinerary from LIMITED_STOPS on.
	// Zero means the default of 2.
	MaxConnections int
	// DirectFetchSize and WideFetchSize are the minimum offer counts asked
	// of the upstream for the DIRECT stage and for the later stages.
	DirectFetchSize int
	WideFetchSize   int
	// DateOffsets is the ALTERNATES date enumeration, in days.
	DateOffsets []int
	// MaxAlternateProbes caps upstream calls in the ALTERNATES stage.
	MaxAlternateProbes int
	// Parallelism > 1 probes ALTERNATES combinations in batches of that size.
	Parallelism int
	// SingleFlight collapses concurrent identical uncached searches.
	SingleFlight bool
}

func DefaultConfig() Config {
	return Config{
		MaxConnections:     2,
		DirectFetchSize:    50,
		WideFetchSize:      150,
		DateOffsets:        []int{0, -1, 1, -2, 2},
		MaxAlternateProbes: 30,
		Parallelism:        1,
	}
}

type Option func(*Orchestrator)

func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock sets the clock used for past-date pruning.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

type Orchestrator struct {
	source     providers.OfferSource
	cache      cache.Cache
	alternates airports.AlternateSource
	normalizer *normalizer.Normalizer
	metrics    *metrics.Registry
	logger     *slog.Logger
	config     Config
	now        func() time.Time
	flight     singleflight.Group
}

// Response is a resolved search plus whether it was served from cache.
type Response struct {
	Result   models.SearchResult
	CacheHit bool
}

func NewOrchestrator(source providers.OfferSource, c cache.Cache, alternates airports.AlternateSource, config Config, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if config.MaxConnections <= 0 {
		config.MaxConnections = defaults.MaxConnections
	}
	if config.DirectFetchSize <= 0 {
		config.DirectFetchSize = defaults.DirectFetchSize
	}
	if config.WideFetchSize <= 0 {
		config.WideFetchSize = defaults.WideFetchSize
	}
	if len(config.DateOffsets) == 0 {
		config.DateOffsets = defaults.DateOffsets
	}
	if config.MaxAlternateProbes <= 0 {
		config.MaxAlternateProbes = defaults.MaxAlternateProbes
	}
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if alternates == nil {
		alternates = airports.StaticSource{}
	}

	o := &Orchestrator{
		source:     source,
		cache:      c,
		alternates: alternates,
		normalizer: normalizer.New(nil),
		logger:     slog.Default(),
		config:     config,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search validates q, serves it from cache when fresh, and otherwise runs
// the cascade and caches whatever it produced, EXHAUSTED included.
// Upstream errors abort the search and are never cached.
func (o *Orchestrator) Search(ctx context.Context, q models.SearchQuery) (Response, error) {
	if err := q.Validate(); err != nil {
		return Response{}, err
	}

	key := cache.KeyFor(q)
	if entry, ok := o.cache.Get(ctx, key); ok {
		o.metrics.CacheLookup(true)
		o.logger.Debug("cache hit", "key", string(key), "strategy", entry.Value.StrategyUsed)
		return Response{Result: entry.Value, CacheHit: true}, nil
	}
	o.metrics.CacheLookup(false)
	o.logger.Debug("cache miss", "key", string(key))

	if !o.config.SingleFlight {
		result, err := o.resolve(ctx, q, key)
		return Response{Result: result}, err
	}

	v, err, _ := o.flight.Do(string(key), func() (interface{}, error) {
		return o.resolve(ctx, q, key)
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: v.(models.SearchResult)}, nil
}

func (o *Orchestrator) resolve(ctx context.Context, q models.SearchQuery, key cache.Key) (models.SearchResult, error) {
	start := time.Now()

	outcome, err := o.cascade(ctx, q)
	if err != nil {
		o.logger.Warn("search aborted",
			"route", q.Origin+"-"+q.Destination,
			"date", q.DepartureDate,
			"error", err,
		)
		return models.SearchResult{}, err
	}

	result := o.buildResult(q, outcome)
	if len(result.Options) > 0 {
		result.Options = ranking.Rank(result.Options)
		if len(result.Options) > q.MaxResults {
			result.Options = result.Options[:q.MaxResults]
		}
	}

	if err := o.cache.Set(ctx, key, result); err != nil {
		o.logger.Warn("cache write failed", "key", string(key), "error", err)
	}

	o.metrics.ObserveSearch(string(result.StrategyUsed), time.Since(start))
	o.logger.Info("search resolved",
		"search_id", result.SearchID,
		"route", q.Origin+"-"+q.Destination,
		"date", q.DepartureDate,
		"strategy", result.StrategyUsed,
		"results", len(result.Options),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// cascade runs each stage in plan order and stops at the first one that
// yields options. Results are never merged across stages or attempts.
func (o *Orchestrator) cascade(ctx context.Context, q models.SearchQuery) (outcome, error) {
	for _, st := range o.Plan(q) {
		o.logger.Debug("stage started", "strategy", st.Strategy, "attempts", len(st.Attempts))

		options, winner, err := o.runStage(ctx, st, q.Currency)
		if err != nil {
			return outcome{}, err
		}
		if len(options) > 0 {
			return outcome{strategy: st.Strategy, options: options, resolved: winner.Resolved}, nil
		}
	}
	return outcome{strategy: models.StrategyExhausted}, nil
}

func (o *Orchestrator) runStage(ctx context.Context, st Stage, currency string) ([]models.FlightOption, Attempt, error) {
	if o.config.Parallelism > 1 && len(st.Attempts) > 1 {
		return o.runParallel(ctx, st, currency)
	}

	for _, a := range st.Attempts {
		options, err := o.probe(ctx, st, a, currency)
		if err != nil {
			return nil, Attempt{}, err
		}
		if len(options) > 0 {
			return options, a, nil
		}
	}
	return nil, Attempt{}, nil
}

// probe issues one upstream query and applies the stage's connection filter.
func (o *Orchestrator) probe(ctx context.Context, st Stage, a Attempt, currency string) ([]models.FlightOption, error) {
	o.metrics.StageAttempt(string(st.Strategy))

	page, err := o.source.FetchOffers(ctx, a.Query)
	if err != nil {
		return nil, err
	}

	options, dropped := o.normalizer.NormalizeAll(page, currency)
	if dropped > 0 {
		o.metrics.OffersDropped(dropped)
		o.logger.Debug("malformed offers dropped", "strategy", st.Strategy, "dropped", dropped)
	}
	return filter.WithinConnections(options, st.MaxConnections), nil
}

type outcome struct {
	strategy models.Strategy
	options  []models.FlightOption
	resolved models.ResolvedSearch
}

func (o *Orchestrator) buildResult(q models.SearchQuery, oc outcome) models.SearchResult {
	result := models.SearchResult{
		SearchID:     uuid.NewString(),
		Options:      oc.options,
		StrategyUsed: oc.strategy,
		StrategyNote: o.note(q, oc),
	}
	if oc.strategy != models.StrategyExhausted {
		resolved := oc.resolved
		result.Resolved = &resolved
	}
	if result.Options == nil {
		result.Options = []models.FlightOption{}
	}
	return result
}
