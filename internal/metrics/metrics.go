package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's collectors. A nil *Registry is valid and
// records nothing, so callers never need to check whether metrics are on.
type Registry struct {
	reg *prometheus.Registry

	Searches         *prometheus.CounterVec
	SearchLatencySec prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	StageAttempts    *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	UpstreamRetries  *prometheus.CounterVec
	DroppedOffers    prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightsearch_searches_total",
		Help: "Completed searches by winning strategy.",
	}, []string{"strategy"})
	searchLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flightsearch_search_duration_seconds",
		Help:    "Wall time of a search including every upstream call.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
	})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightsearch_cache_lookups_total",
		Help: "Result cache lookups by outcome.",
	}, []string{"outcome"})
	stageAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightsearch_stage_attempts_total",
		Help: "Upstream queries issued per cascade stage.",
	}, []string{"strategy"})
	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightsearch_upstream_requests_total",
		Help: "Upstream HTTP calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	upstreamLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightsearch_upstream_duration_seconds",
		Help:    "Latency of single upstream HTTP calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	upstreamRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightsearch_upstream_retries_total",
		Help: "Upstream retries by endpoint.",
	}, []string{"endpoint"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flightsearch_dropped_offers_total",
		Help: "Upstream offers discarded as malformed during normalization.",
	})

	r.MustRegister(
		searches, searchLatency, cacheLookups, stageAttempts,
		upstreamRequests, upstreamLatency, upstreamRetries, dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:              r,
		Searches:         searches,
		SearchLatencySec: searchLatency,
		CacheLookups:     cacheLookups,
		StageAttempts:    stageAttempts,
		UpstreamRequests: upstreamRequests,
		UpstreamLatency:  upstreamLatency,
		UpstreamRetries:  upstreamRetries,
		DroppedOffers:    dropped,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) ObserveSearch(strategy string, d time.Duration) {
	if r == nil {
		return
	}
	r.Searches.WithLabelValues(strategy).Inc()
	r.SearchLatencySec.Observe(d.Seconds())
}

func (r *Registry) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.CacheLookups.WithLabelValues(outcome).Inc()
}

func (r *Registry) StageAttempt(strategy string) {
	if r == nil {
		return
	}
	r.StageAttempts.WithLabelValues(strategy).Inc()
}

func (r *Registry) ObserveUpstream(endpoint, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	r.UpstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (r *Registry) UpstreamRetry(endpoint string) {
	if r == nil {
		return
	}
	r.UpstreamRetries.WithLabelValues(endpoint).Inc()
}

func (r *Registry) OffersDropped(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.DroppedOffers.Add(float64(n))
}
