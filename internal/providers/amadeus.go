package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/navuara/flightsearch/internal/ratelimit"
)

const (
	AmadeusTestURL       = "https://test.api.amadeus.com"
	AmadeusProductionURL = "https://api.amadeus.com"

	EndpointToken  = "token"
	EndpointOffers = "offers"

	tokenPath  = "/v1/security/oauth2/token"
	offersPath = "/v2/shopping/flight-offers"

	maxBodyBytes = 16 << 20
)

// BaseURLFor maps an environment name to the provider's base URL.
func BaseURLFor(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production":
		return AmadeusProductionURL
	default:
		return AmadeusTestURL
	}
}

type AmadeusConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	// Timeout bounds a single offers attempt; TokenTimeout a token request.
	Timeout            time.Duration
	TokenTimeout       time.Duration
	TokenRefreshMargin time.Duration

	MaxRetries int
	RetryDelay time.Duration

	FieldMap FieldMap
}

func DefaultAmadeusConfig() AmadeusConfig {
	return AmadeusConfig{
		BaseURL:            AmadeusTestURL,
		Timeout:            20 * time.Second,
		TokenTimeout:       10 * time.Second,
		TokenRefreshMargin: 2 * time.Minute,
		MaxRetries:         2,
		RetryDelay:         time.Second,
		FieldMap:           AmadeusFlightOffersV2,
	}
}

// Observer receives per-call upstream telemetry.
type Observer interface {
	ObserveUpstream(endpoint, outcome string, d time.Duration)
	UpstreamRetry(endpoint string)
}

type nopObserver struct{}

func (nopObserver) ObserveUpstream(string, string, time.Duration) {}
func (nopObserver) UpstreamRetry(string)                          {}

type Option func(*Amadeus)

func WithHTTPClient(c *http.Client) Option {
	return func(a *Amadeus) { a.client = c }
}

func WithLimiter(w ratelimit.Waiter) Option {
	return func(a *Amadeus) { a.limiter = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Amadeus) { a.logger = l }
}

func WithObserver(o Observer) Option {
	return func(a *Amadeus) { a.observer = o }
}

// Amadeus is the OfferSource backed by the Amadeus Self-Service flight
// offers API. It is safe for concurrent use.
type Amadeus struct {
	cfg      AmadeusConfig
	client   *http.Client
	tokens   *tokenSource
	limiter  ratelimit.Waiter
	logger   *slog.Logger
	observer Observer
}

func NewAmadeus(cfg AmadeusConfig, opts ...Option) (*Amadeus, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("amadeus client id and secret are required")
	}
	defaults := DefaultAmadeusConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.TokenTimeout <= 0 {
		cfg.TokenTimeout = defaults.TokenTimeout
	}
	if cfg.TokenRefreshMargin < 0 {
		cfg.TokenRefreshMargin = 0
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.FieldMap.Version == "" {
		cfg.FieldMap = defaults.FieldMap
	}
	if err := cfg.FieldMap.Validate(); err != nil {
		return nil, err
	}

	a := &Amadeus{
		cfg:      cfg,
		client:   &http.Client{},
		limiter:  ratelimit.Unlimited{},
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.tokens = newTokenSource(a.fetchToken, cfg.TokenRefreshMargin)
	return a, nil
}

func (a *Amadeus) Name() string {
	return "amadeus"
}

// FetchOffers runs one offers query, retrying timeouts, rate limits and
// server errors up to MaxRetries times with a linearly growing delay.
func (a *Amadeus) FetchOffers(ctx context.Context, q OfferQuery) (OfferPage, error) {
	var lastErr error

	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			a.observer.UpstreamRetry(EndpointOffers)
			select {
			case <-time.After(a.cfg.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return OfferPage{}, a.contextError(ctx.Err())
			}
		}

		page, err := a.fetchOnce(ctx, q)
		if err == nil {
			return page, nil
		}
		lastErr = err

		ue, ok := AsUpstreamError(err)
		if !ok || !ue.Retryable() || ctx.Err() != nil {
			return OfferPage{}, err
		}
		a.logger.Warn("upstream attempt failed",
			"provider", a.Name(),
			"attempt", attempt+1,
			"route", q.Origin+"-"+q.Destination,
			"date", q.DepartureDate,
			"error", err,
		)
	}

	return OfferPage{}, lastErr
}

func (a *Amadeus) fetchOnce(ctx context.Context, q OfferQuery) (OfferPage, error) {
	if err := a.limiter.Wait(ctx, EndpointOffers); err != nil {
		return OfferPage{}, a.contextError(err)
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		if _, ok := AsUpstreamError(err); ok {
			return OfferPage{}, err
		}
		return OfferPage{}, NewUpstreamError(a.Name(), KindNetwork, 0, "token acquisition failed", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, a.cfg.BaseURL+offersPath+"?"+offerParams(q).Encode(), nil)
	if err != nil {
		return OfferPage{}, NewUpstreamError(a.Name(), KindBadRequest, 0, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		kind := transportKind(attemptCtx, err)
		a.observer.ObserveUpstream(EndpointOffers, string(kind), time.Since(start))
		return OfferPage{}, NewUpstreamError(a.Name(), kind, 0, "offers request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		kind := transportKind(attemptCtx, err)
		a.observer.ObserveUpstream(EndpointOffers, string(kind), time.Since(start))
		return OfferPage{}, NewUpstreamError(a.Name(), kind, resp.StatusCode, "read offers response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := KindForStatus(resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized {
			// The token was rejected before its expiry; force a refresh for
			// the next call but don't retry this one.
			a.tokens.Invalidate()
			kind = KindBadRequest
		}
		a.observer.ObserveUpstream(EndpointOffers, string(kind), time.Since(start))
		return OfferPage{}, NewUpstreamError(a.Name(), kind, resp.StatusCode, errorDetail(body), nil)
	}

	page, err := a.cfg.FieldMap.Decode(body)
	if err != nil {
		a.observer.ObserveUpstream(EndpointOffers, string(KindServerError), time.Since(start))
		return OfferPage{}, NewUpstreamError(a.Name(), KindServerError, resp.StatusCode, "malformed offers response", err)
	}
	a.observer.ObserveUpstream(EndpointOffers, "ok", time.Since(start))

	a.logger.Debug("offers fetched",
		"provider", a.Name(),
		"route", q.Origin+"-"+q.Destination,
		"date", q.DepartureDate,
		"non_stop", q.NonStop,
		"offers", len(page.Offers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return page, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// fetchToken reports every failure as KindNetwork, timeouts included.
func (a *Amadeus) fetchToken(ctx context.Context) (string, time.Duration, error) {
	if err := a.limiter.Wait(ctx, EndpointToken); err != nil {
		return "", 0, NewUpstreamError(a.Name(), KindNetwork, 0, "token request aborted", err)
	}

	tokenCtx, cancel := context.WithTimeout(ctx, a.cfg.TokenTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(tokenCtx, http.MethodPost, a.cfg.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, NewUpstreamError(a.Name(), KindNetwork, 0, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.observer.ObserveUpstream(EndpointToken, string(transportKind(tokenCtx, err)), time.Since(start))
		return "", 0, NewUpstreamError(a.Name(), KindNetwork, 0, "token request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		a.observer.ObserveUpstream(EndpointToken, "error", time.Since(start))
		return "", 0, NewUpstreamError(a.Name(), KindNetwork, resp.StatusCode, "token request rejected: "+errorDetail(body), nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		a.observer.ObserveUpstream(EndpointToken, "error", time.Since(start))
		return "", 0, NewUpstreamError(a.Name(), KindNetwork, resp.StatusCode, "malformed token response", err)
	}
	a.observer.ObserveUpstream(EndpointToken, "ok", time.Since(start))

	a.logger.Debug("access token refreshed", "provider", a.Name(), "expires_in", tr.ExpiresIn)
	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}

func (a *Amadeus) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewUpstreamError(a.Name(), KindTimeout, 0, "deadline exceeded", err)
	}
	return NewUpstreamError(a.Name(), KindNetwork, 0, "request aborted", err)
}

func offerParams(q OfferQuery) url.Values {
	v := url.Values{}
	v.Set("originLocationCode", q.Origin)
	v.Set("destinationLocationCode", q.Destination)
	v.Set("departureDate", q.DepartureDate)
	if q.ReturnDate != "" {
		v.Set("returnDate", q.ReturnDate)
	}
	adults := q.Adults
	if adults < 1 {
		adults = 1
	}
	v.Set("adults", strconv.Itoa(adults))
	if q.Currency != "" {
		v.Set("currencyCode", q.Currency)
	}
	if q.Max > 0 {
		v.Set("max", strconv.Itoa(q.Max))
	}
	if q.NonStop {
		v.Set("nonStop", "true")
	}
	return v
}

func transportKind(ctx context.Context, err error) ErrorKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// errorDetail pulls a human-readable message out of an error body.
func errorDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		for _, path := range []string{"errors.0.detail", "errors.0.title", "error_description", "error"} {
			if v := root.Get(path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return "empty error response"
	}
	return msg
}
