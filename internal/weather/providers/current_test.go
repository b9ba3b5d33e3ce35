package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/cyclone-tracker/internal/weather"
)

const currentBody = `{
	"latitude": -21.125,
	"longitude": 55.5,
	"current": {"time": "2024-01-15T14:00", "interval": 900, "temperature_2m": 28.5, "surface_pressure": 975.2, "wind_speed_10m": 85.3}
}`

func TestOpenMeteo_FetchCurrent(t *testing.T) {
	srv, query := newProviderServer(t, currentBody)
	f, _ := newTestFetcher(t, testPolicy(0))
	p := NewOpenMeteoProvider(f, srv.URL)

	loc := weather.Location{Latitude: -21.1151, Longitude: 55.5364}
	got, err := p.FetchCurrent(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, loc, got.Location)
	assert.Equal(t, "2024-01-15T14:00", got.Current.Time)
	assert.InDelta(t, 28.5, got.Current.Temperature, 1e-9)
	assert.InDelta(t, 975.2, got.Current.Pressure, 1e-9)
	assert.InDelta(t, 85.3, got.Current.WindSpeed, 1e-9)

	assert.Equal(t, currentFields, query.Get("current"))
	assert.Equal(t, "auto", query.Get("timezone"))
	assert.Empty(t, query.Get("daily"))
}

func TestOpenMeteo_FetchCurrentMissingFields(t *testing.T) {
	for _, body := range []string{
		`{"latitude": 1}`,
		`{"current": {}}`,
		`{"current": {"time": "2024-01-15T14:00", "temperature_2m": 28.5, "wind_speed_10m": 10}}`,
	} {
		srv, _ := newProviderServer(t, body)
		f, _ := newTestFetcher(t, testPolicy(0))
		p := NewOpenMeteoProvider(f, srv.URL)

		_, err := p.FetchCurrent(context.Background(), weather.Location{})
		assert.ErrorIs(t, err, ErrMalformedResponse, body)
	}
}

func TestOpenMeteo_FetchCurrentRejectsBadCoordinates(t *testing.T) {
	srv, calls := countingServer(t, http.StatusOK, currentBody, nil)
	f, _ := newTestFetcher(t, testPolicy(0))
	p := NewOpenMeteoProvider(f, srv.URL)

	_, err := p.FetchCurrent(context.Background(), weather.Location{Latitude: -95, Longitude: 55.5364})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, int32(0), calls.Load())
}
