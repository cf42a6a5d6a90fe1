// Package app assembles the search service from its configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/navuara/flightsearch/internal/airports"
	"github.com/navuara/flightsearch/internal/cache"
	"github.com/navuara/flightsearch/internal/config"
	"github.com/navuara/flightsearch/internal/metrics"
	"github.com/navuara/flightsearch/internal/normalizer"
	"github.com/navuara/flightsearch/internal/providers"
	"github.com/navuara/flightsearch/internal/ratelimit"
	"github.com/navuara/flightsearch/internal/search"
)

// App owns the long-lived components shared by the HTTP server and the CLI.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *metrics.Registry
	Airports     *airports.Directory
	Orchestrator *search.Orchestrator

	cache  cache.Cache
	cancel context.CancelFunc
}

type Option func(*builder)

type builder struct {
	source    providers.OfferSource
	logOutput io.Writer
}

// WithOfferSource replaces the Amadeus client, mainly for tests.
func WithOfferSource(src providers.OfferSource) Option {
	return func(b *builder) { b.source = src }
}

// WithLogOutput redirects the service log, which defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(b *builder) { b.logOutput = w }
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	b := builder{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&b)
	}

	logger := NewLogger(cfg.Log, b.logOutput)

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	dir, err := LoadAirports(cfg.Alternates)
	if err != nil {
		return nil, err
	}
	logger.Info("airport directory loaded", "airports", dir.Len(), "include_country", cfg.Alternates.IncludeCountry)

	source := b.source
	if source == nil {
		source, err = newAmadeus(cfg, logger, reg)
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c, err := newCache(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	orch := search.NewOrchestrator(source, c, dir, search.Config{
		WideFetchSize:      cfg.Search.WideFetchSize,
		MaxAlternateProbes: cfg.Alternates.MaxProbes,
		Parallelism:        cfg.Alternates.Parallelism,
		SingleFlight:       cfg.Search.SingleFlight,
	},
		search.WithNormalizer(normalizer.New(dir)),
		search.WithMetrics(reg),
		search.WithLogger(logger),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Metrics:      reg,
		Airports:     dir,
		Orchestrator: orch,
		cache:        c,
		cancel:       cancel,
	}, nil
}

// Close stops background work and releases the cache backend.
func (a *App) Close() error {
	a.cancel()
	return a.cache.Close()
}

// NewLogger builds the JSON logger used in production or, for LOG_FORMAT=text,
// a tint handler that colors output only when w is a terminal.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	if cfg.Format == "text" {
		noColor := true
		if f, ok := w.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd())
		}
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    noColor,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadAirports reads AIRPORTS_FILE when set, else the built-in directory.
func LoadAirports(cfg config.AlternatesConfig) (*airports.Directory, error) {
	opts := airports.Options{IncludeCountry: cfg.IncludeCountry}
	if cfg.AirportsFile != "" {
		return airports.LoadFile(cfg.AirportsFile, opts)
	}
	return airports.LoadDefault(opts)
}

func newAmadeus(cfg *config.Config, logger *slog.Logger, reg *metrics.Registry) (*providers.Amadeus, error) {
	baseURL := cfg.Amadeus.BaseURL
	if baseURL == "" {
		baseURL = providers.BaseURLFor(cfg.Amadeus.Env)
	}

	limiter := ratelimit.NewEndpointLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		BurstSize:         cfg.Upstream.Burst,
	})

	opts := []providers.Option{
		providers.WithLimiter(limiter),
		providers.WithLogger(logger),
	}
	if reg != nil {
		opts = append(opts, providers.WithObserver(reg))
	}

	client, err := providers.NewAmadeus(providers.AmadeusConfig{
		BaseURL:            baseURL,
		ClientID:           cfg.Amadeus.ClientID,
		ClientSecret:       cfg.Amadeus.ClientSecret,
		Timeout:            cfg.Upstream.Timeout,
		TokenTimeout:       cfg.Upstream.TokenTimeout,
		TokenRefreshMargin: cfg.Upstream.TokenRefreshMargin,
		MaxRetries:         cfg.Upstream.MaxRetries,
		RetryDelay:         cfg.Upstream.RetryDelay,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure upstream client: %w", err)
	}
	logger.Info("upstream client configured", "base_url", baseURL)
	return client, nil
}

func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("redis cache enabled", "addr", cfg.Redis.Host+":"+cfg.Redis.Port, "ttl", cfg.Cache.TTL)
		return c, nil
	case config.CacheNone:
		logger.Info("cache disabled")
		return cache.NewNoOpCache(), nil
	default:
		c := cache.NewMemoryCache(cfg.Cache.TTL)
		if cfg.Cache.SweepInterval > 0 {
			c.StartJanitor(ctx, cfg.Cache.SweepInterval)
		}
		logger.Info("memory cache enabled", "ttl", cfg.Cache.TTL, "sweep_interval", cfg.Cache.SweepInterval)
		return c, nil
	}
}
