package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestToQueryNormalizesAndDefaults(t *testing.T) {
	req := SearchRequest{
		Origin:        " mex ",
		Destination:   "cun",
		DepartureDate: "2030-03-10",
	}

	q, err := req.ToQuery()
	require.NoError(t, err)
	assert.Equal(t, SearchQuery{
		Origin:        "MEX",
		Destination:   "CUN",
		DepartureDate: "2030-03-10",
		Adults:        1,
		Currency:      "USD",
		MaxResults:    DefaultMaxResults,
	}, q)
	assert.False(t, q.IsRoundTrip())
}

func TestToQueryClampsMax(t *testing.T) {
	req := SearchRequest{Origin: "MEX", Destination: "CUN", DepartureDate: "2030-03-10"}

	req.MaxResults = intPtr(0)
	q, err := req.ToQuery()
	require.NoError(t, err)
	assert.Equal(t, 1, q.MaxResults)

	req.MaxResults = intPtr(5000)
	q, err = req.ToQuery()
	require.NoError(t, err)
	assert.Equal(t, MaxResultsLimit, q.MaxResults)
}

func TestValidate(t *testing.T) {
	valid := SearchQuery{
		Origin:        "MEX",
		Destination:   "CUN",
		DepartureDate: "2030-03-10",
		ReturnDate:    "2030-03-10",
		Adults:        2,
		Currency:      "MXN",
		MaxResults:    10,
	}
	require.NoError(t, valid.Validate(), "same-day return is allowed")

	tests := []struct {
		name   string
		mutate func(*SearchQuery)
		want   ValidationError
	}{
		{"lowercase origin", func(q *SearchQuery) { q.Origin = "mex" }, ErrInvalidOrigin},
		{"long destination", func(q *SearchQuery) { q.Destination = "CUNX" }, ErrInvalidDestination},
		{"impossible date", func(q *SearchQuery) { q.DepartureDate = "2030-02-30" }, ErrInvalidDepartureDate},
		{"unpadded date", func(q *SearchQuery) { q.DepartureDate = "2030-3-10" }, ErrInvalidDepartureDate},
		{"bad return", func(q *SearchQuery) { q.ReturnDate = "soon" }, ErrInvalidReturnDate},
		{"return before departure", func(q *SearchQuery) { q.ReturnDate = "2030-03-09" }, ErrReturnBeforeDeparture},
		{"no adults", func(q *SearchQuery) { q.Adults = 0 }, ErrInvalidAdults},
		{"currency digits", func(q *SearchQuery) { q.Currency = "US1" }, ErrInvalidCurrency},
		{"max too large", func(q *SearchQuery) { q.MaxResults = 201 }, ErrInvalidMaxResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			err := q.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestFieldErrorCarriesValue(t *testing.T) {
	_, err := SearchRequest{Origin: "MEXICO", Destination: "CUN", DepartureDate: "2030-03-10"}.ToQuery()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"MEXICO"`)
	assert.ErrorIs(t, err, ErrInvalidOrigin)
}

func TestShiftDates(t *testing.T) {
	q := SearchQuery{DepartureDate: "2030-03-01", ReturnDate: "2030-03-08"}

	back := q.ShiftDates(-1)
	assert.Equal(t, "2030-02-28", back.DepartureDate)
	assert.Equal(t, "2030-03-07", back.ReturnDate)

	assert.Equal(t, q, q.ShiftDates(0))

	oneWay := SearchQuery{DepartureDate: "2030-12-31"}.ShiftDates(2)
	assert.Equal(t, "2031-01-02", oneWay.DepartureDate)
	assert.Empty(t, oneWay.ReturnDate)
}

func TestFilters(t *testing.T) {
	assert.Nil(t, SearchRequest{}.Filters())

	price := 300.0
	f := SearchRequest{MaxPrice: &price, Airlines: []string{"am, y4", "", "vb"}}.Filters()
	require.NotNil(t, f)
	assert.Equal(t, []string{"AM", "Y4", "VB"}, f.Airlines)
	assert.Equal(t, &price, f.MaxPrice)
	assert.Nil(t, f.MaxStops)
}
