package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navuara/flightsearch/internal/app"
	"github.com/navuara/flightsearch/internal/models"
	"github.com/navuara/flightsearch/internal/providers"
)

type stubSource struct {
	calls atomic.Int32
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchOffers(ctx context.Context, q providers.OfferQuery) (providers.OfferPage, error) {
	s.calls.Add(1)
	if q.NonStop {
		return providers.OfferPage{}, nil
	}
	return providers.OfferPage{
		Offers: []providers.RawOffer{{
			ID:         "1",
			PriceTotal: "2310.00",
			Currency:   q.Currency,
			Itineraries: []providers.RawItinerary{{
				Duration: "PT5H15M",
				Segments: []providers.RawSegment{
					{CarrierCode: "AM", FlightNumber: "1", DepartureIATA: q.Origin, DepartureAt: q.DepartureDate + "T06:00:00", ArrivalIATA: "MID", ArrivalAt: q.DepartureDate + "T08:00:00"},
					{CarrierCode: "AM", FlightNumber: "2", DepartureIATA: "MID", DepartureAt: q.DepartureDate + "T09:15:00", ArrivalIATA: q.Destination, ArrivalAt: q.DepartureDate + "T10:15:00"},
				},
			}},
		}},
		Carriers: map[string]string{"AM": "AEROMEXICO"},
	}, nil
}

// isolate blanks settings a developer's shell might carry into the test.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CACHE_BACKEND", "AIRPORTS_FILE", "ALTERNATES_INCLUDE_COUNTRY", "LOG_FORMAT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func execute(t *testing.T, src providers.OfferSource, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := New(&out, io.Discard, app.WithOfferSource(src)).RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommandTable(t *testing.T) {
	isolate(t)
	src := &stubSource{}

	out, err := execute(t, src, "search", "--from", "mex", "--to", "cun", "--date", "2030-03-10", "--currency", "MXN")
	require.NoError(t, err)

	assert.Contains(t, out, "Showing flights with connections (up to 2) (LIMITED_STOPS)")
	assert.Contains(t, out, "Searched: MEX-CUN 2030-03-10")
	assert.Contains(t, out, "MXN 2,310.00")
	assert.Contains(t, out, "MEX-MID-CUN")
	assert.Contains(t, out, "5h15m")
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSearchCommandJSON(t *testing.T) {
	isolate(t)

	out, err := execute(t, &stubSource{}, "search", "--from", "MEX", "--to", "CUN", "--date", "2030-03-10", "--json")
	require.NoError(t, err)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, models.StrategyLimitedStops, resp.Metadata.StrategyUsed)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "USD 2,310.00", resp.Results[0].PriceFormatted)
}

func TestSearchCommandFilters(t *testing.T) {
	isolate(t)

	out, err := execute(t, &stubSource{}, "search", "--from", "MEX", "--to", "CUN", "--date", "2030-03-10", "--max-stops", "0", "--json")
	require.NoError(t, err)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Results)
	require.NotNil(t, resp.SearchCriteria.Filters)
	assert.Equal(t, 0, *resp.SearchCriteria.Filters.MaxStops)
}

func TestSearchCommandRejectsInvalidInput(t *testing.T) {
	isolate(t)
	src := &stubSource{}

	_, err := execute(t, src, "search", "--from", "MEX", "--to", "CUN", "--date", "2030-02-30")
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
	assert.Zero(t, src.calls.Load())

	_, err = execute(t, src, "search", "--from", "MEX")
	assert.Error(t, err, "missing required flags")
}

func TestAlternatesCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, &stubSource{}, "alternates", "mex")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "MEX\t"))
	assert.Contains(t, out, "NLU\t")

	out, err = execute(t, &stubSource{}, "alternates", "ZZZ")
	require.NoError(t, err)
	assert.Equal(t, "ZZZ\n", out)
}
