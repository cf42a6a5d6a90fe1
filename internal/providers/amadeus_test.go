package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const offersBody = `{
  "data": [{
    "id": "1",
    "numberOfBookableSeats": 4,
    "price": {"currency": "USD", "total": "140.00", "grandTotal": "150.00"},
    "itineraries": [{
      "duration": "PT4H",
      "segments": [
        {"carrierCode": "AM", "number": "100",
         "departure": {"iataCode": "MEX", "terminal": "2", "at": "2026-11-20T08:00:00"},
         "arrival": {"iataCode": "MID", "at": "2026-11-20T10:00:00"},
         "duration": "PT2H"},
        {"carrierCode": "AM", "number": "200",
         "departure": {"iataCode": "MID", "at": "2026-11-20T10:30:00"},
         "arrival": {"iataCode": "CUN", "at": "2026-11-20T12:00:00"},
         "duration": "PT1H30M"}
      ]
    }]
  }],
  "dictionaries": {"carriers": {"AM": "AEROMEXICO"}}
}`

type fakeAmadeus struct {
	tokenCalls  atomic.Int32
	offerCalls  atomic.Int32
	lastQuery   atomic.Value
	lastAuth    atomic.Value
	offerStatus []int
	offerBody   string
	tokenTTL    int
}

func (f *fakeAmadeus) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		n := f.tokenCalls.Add(1)
		ttl := f.tokenTTL
		if ttl == 0 {
			ttl = 1799
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":%d}`, n, ttl)
	})
	mux.HandleFunc(offersPath, func(w http.ResponseWriter, r *http.Request) {
		n := int(f.offerCalls.Add(1))
		f.lastQuery.Store(r.URL.Query())
		f.lastAuth.Store(r.Header.Get("Authorization"))
		if n <= len(f.offerStatus) && f.offerStatus[n-1] != http.StatusOK {
			w.WriteHeader(f.offerStatus[n-1])
			_, _ = io.WriteString(w, `{"errors":[{"status":400,"title":"INVALID","detail":"upstream says no"}]}`)
			return
		}
		body := f.offerBody
		if body == "" {
			body = offersBody
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeAmadeus, mutate func(*AmadeusConfig)) *Amadeus {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := DefaultAmadeusConfig()
	cfg.BaseURL = srv.URL
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.RetryDelay = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewAmadeus(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func TestAmadeusFetchOffers(t *testing.T) {
	f := &fakeAmadeus{}
	c := newTestClient(t, f, nil)

	page, err := c.FetchOffers(context.Background(), OfferQuery{
		Origin:        "MEX",
		Destination:   "CUN",
		DepartureDate: "2026-11-20",
		Adults:        1,
		Currency:      "USD",
		Max:           150,
		NonStop:       true,
	})
	require.NoError(t, err)
	require.Len(t, page.Offers, 1)

	offer := page.Offers[0]
	assert.Equal(t, "150.00", offer.PriceTotal, "grand total wins over total")
	assert.Equal(t, "USD", offer.Currency)
	require.NotNil(t, offer.BookableSeats)
	assert.Equal(t, 4, *offer.BookableSeats)
	require.Len(t, offer.Itineraries, 1)
	require.Len(t, offer.Itineraries[0].Segments, 2)
	assert.Equal(t, "2", offer.Itineraries[0].Segments[0].DepartureTerminal)
	assert.Equal(t, "", offer.Itineraries[0].Segments[1].DepartureTerminal)
	assert.Equal(t, "AEROMEXICO", page.Carriers["AM"])

	q := f.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"MEX"}, q["originLocationCode"])
	assert.Equal(t, []string{"CUN"}, q["destinationLocationCode"])
	assert.Equal(t, []string{"2026-11-20"}, q["departureDate"])
	assert.Equal(t, []string{"150"}, q["max"])
	assert.Equal(t, []string{"true"}, q["nonStop"])
	assert.NotContains(t, q, "returnDate")
	assert.Equal(t, "Bearer tok-1", f.lastAuth.Load())
}

func TestAmadeusOmitsNonStopWhenFalse(t *testing.T) {
	f := &fakeAmadeus{}
	c := newTestClient(t, f, nil)

	_, err := c.FetchOffers(context.Background(), OfferQuery{
		Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20", ReturnDate: "2026-11-27",
	})
	require.NoError(t, err)

	q := f.lastQuery.Load().(url.Values)
	assert.NotContains(t, q, "nonStop")
	assert.Equal(t, []string{"2026-11-27"}, q["returnDate"])
	assert.Equal(t, []string{"1"}, q["adults"])
}

func TestAmadeusReusesToken(t *testing.T) {
	f := &fakeAmadeus{}
	c := newTestClient(t, f, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, int32(5), f.offerCalls.Load())
}

func TestAmadeusRefreshesTokenInsideMargin(t *testing.T) {
	f := &fakeAmadeus{tokenTTL: 60}
	c := newTestClient(t, f, nil)

	for i := 0; i < 2; i++ {
		_, err := c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), f.tokenCalls.Load(), "a 60s token is always inside the 2m refresh margin")
}

func TestAmadeusRetriesServerErrors(t *testing.T) {
	f := &fakeAmadeus{offerStatus: []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusOK}}
	c := newTestClient(t, f, nil)

	page, err := c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
	require.NoError(t, err)
	assert.Len(t, page.Offers, 1)
	assert.Equal(t, int32(3), f.offerCalls.Load())
}

func TestAmadeusGivesUpAfterMaxRetries(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind ErrorKind
	}{
		{name: "bad gateway", status: http.StatusBadGateway, wantKind: KindServerError},
		{name: "too many requests", status: http.StatusTooManyRequests, wantKind: KindRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAmadeus{offerStatus: []int{tt.status, tt.status, tt.status, tt.status}}
			c := newTestClient(t, f, nil)

			_, err := c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
			require.Error(t, err)

			ue, ok := AsUpstreamError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, ue.Kind)
			assert.Equal(t, tt.status, ue.StatusCode)
			assert.True(t, ue.Transient())
			assert.Equal(t, int32(3), f.offerCalls.Load())
		})
	}
}

func TestAmadeusDoesNotRetryBadRequest(t *testing.T) {
	f := &fakeAmadeus{offerStatus: []int{http.StatusBadRequest}}
	c := newTestClient(t, f, nil)

	_, err := c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, ue.Kind)
	assert.Equal(t, "upstream says no", ue.Message)
	assert.False(t, ue.Transient())
	assert.Equal(t, int32(1), f.offerCalls.Load())
}

func TestAmadeusUnauthorizedInvalidatesToken(t *testing.T) {
	f := &fakeAmadeus{offerStatus: []int{http.StatusUnauthorized}}
	c := newTestClient(t, f, nil)
	ctx := context.Background()
	q := OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"}

	_, err := c.FetchOffers(ctx, q)
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, KindBadRequest, ue.Kind)

	_, err = c.FetchOffers(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenCalls.Load())
	assert.Equal(t, "Bearer tok-2", f.lastAuth.Load())
}

func TestAmadeusMalformedBodyIsServerError(t *testing.T) {
	f := &fakeAmadeus{offerBody: `{"data": {"not": "an array"}}`}
	c := newTestClient(t, f, func(cfg *AmadeusConfig) { cfg.MaxRetries = 0 })

	_, err := c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, KindServerError, ue.Kind)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestAmadeusAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			_, _ = io.WriteString(w, `{"access_token":"t","expires_in":1799}`)
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := DefaultAmadeusConfig()
	cfg.BaseURL = srv.URL
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.Timeout = 30 * time.Millisecond
	cfg.MaxRetries = 0
	c, err := NewAmadeus(cfg)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, ue.Kind)
	assert.True(t, ue.Transient())
	assert.Less(t, time.Since(start), time.Second)
}

func TestAmadeusTokenFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client","error_description":"Client credentials are invalid"}`)
	}))
	defer srv.Close()

	c, err := NewAmadeus(AmadeusConfig{BaseURL: srv.URL, ClientID: "id", ClientSecret: "bad"})
	require.NoError(t, err)

	_, err = c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, ue.Kind)
	assert.Contains(t, ue.Message, "Client credentials are invalid")
}

func TestAmadeusTokenTimeoutIsNetworkError(t *testing.T) {
	var tokenCalls, offerCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokenPath {
			offerCalls.Add(1)
			_, _ = io.WriteString(w, offersBody)
			return
		}
		tokenCalls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := DefaultAmadeusConfig()
	cfg.BaseURL = srv.URL
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.TokenTimeout = 30 * time.Millisecond
	cfg.RetryDelay = time.Millisecond
	c, err := NewAmadeus(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.FetchOffers(context.Background(), OfferQuery{Origin: "MEX", Destination: "CUN", DepartureDate: "2026-11-20"})
	elapsed := time.Since(start)

	ue, ok := AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, ue.Kind)
	assert.False(t, ue.Retryable())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Zero(t, offerCalls.Load())
}

func TestNewAmadeusRequiresCredentials(t *testing.T) {
	_, err := NewAmadeus(AmadeusConfig{})
	assert.Error(t, err)
}

func TestBaseURLFor(t *testing.T) {
	assert.Equal(t, AmadeusTestURL, BaseURLFor("test"))
	assert.Equal(t, AmadeusTestURL, BaseURLFor(""))
	assert.Equal(t, AmadeusProductionURL, BaseURLFor("production"))
	assert.Equal(t, AmadeusProductionURL, BaseURLFor("PROD"))
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{400, KindBadRequest},
		{404, KindBadRequest},
		{408, KindTimeout},
		{429, KindRateLimited},
		{500, KindServerError},
		{503, KindServerError},
		{504, KindTimeout},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindForStatus(tt.status), "status %d", tt.status)
	}
}
