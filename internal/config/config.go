// Package config loads service settings from the environment, after an
// optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Amadeus    AmadeusConfig
	Upstream   UpstreamConfig
	Cache      CacheConfig
	Redis      RedisConfig
	Alternates AlternatesConfig
	Search     SearchConfig
	Metrics    MetricsConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port string
}

type AmadeusConfig struct {
	Env          string
	BaseURL      string
	ClientID     string
	ClientSecret string
}

type UpstreamConfig struct {
	Timeout            time.Duration
	TokenTimeout       time.Duration
	TokenRefreshMargin time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	RequestsPerSecond  float64
	Burst              int
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AlternatesConfig struct {
	AirportsFile   string
	IncludeCountry bool
	MaxProbes      int
	Parallelism    int
}

type SearchConfig struct {
	WideFetchSize int
	SingleFlight  bool
}

type MetricsConfig struct {
	Enabled bool
}

type LogConfig struct {
	Format string
	Level  string
}

// Load reads .env (if present) without overriding variables already set in
// the environment, then builds and validates the Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Amadeus: AmadeusConfig{
			Env:          getEnv("AMADEUS_ENV", "test"),
			BaseURL:      getEnv("AMADEUS_BASE_URL", ""),
			ClientID:     getEnv("AMADEUS_CLIENT_ID", ""),
			ClientSecret: getEnv("AMADEUS_CLIENT_SECRET", ""),
		},
		Upstream: UpstreamConfig{
			Timeout:            getEnvDuration("UPSTREAM_TIMEOUT", 20*time.Second),
			TokenTimeout:       getEnvDuration("TOKEN_TIMEOUT", 10*time.Second),
			TokenRefreshMargin: getEnvDuration("TOKEN_REFRESH_MARGIN", 2*time.Minute),
			MaxRetries:         getEnvInt("UPSTREAM_MAX_RETRIES", 2),
			RetryDelay:         getEnvDuration("UPSTREAM_RETRY_DELAY", time.Second),
			RequestsPerSecond:  getEnvFloat("UPSTREAM_RPS", 8),
			Burst:              getEnvInt("UPSTREAM_BURST", 8),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
			TTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", 0),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Alternates: AlternatesConfig{
			AirportsFile:   getEnv("AIRPORTS_FILE", ""),
			IncludeCountry: getEnvBool("ALTERNATES_INCLUDE_COUNTRY", false),
			MaxProbes:      getEnvInt("ALTERNATES_MAX_PROBES", 30),
			Parallelism:    getEnvInt("ALTERNATES_PARALLELISM", 1),
		},
		Search: SearchConfig{
			WideFetchSize: getEnvInt("WIDE_FETCH_SIZE", 150),
			SingleFlight:  getEnvBool("SINGLEFLIGHT_ENABLED", false),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Log: LogConfig{
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of memory, redis, none (got %q)", c.Cache.Backend)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text (got %q)", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive (got %s)", c.Cache.TTL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive (got %s)", c.Upstream.Timeout)
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("UPSTREAM_MAX_RETRIES must not be negative (got %d)", c.Upstream.MaxRetries)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
