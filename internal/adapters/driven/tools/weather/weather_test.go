package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

func newTestService(t *testing.T, geocode, forecast http.HandlerFunc) *Service {
	t.Helper()

	geoSrv := httptest.NewServer(geocode)
	t.Cleanup(geoSrv.Close)
	fcSrv := httptest.NewServer(forecast)
	t.Cleanup(fcSrv.Close)

	return NewService(Config{
		GeocodingURL: geoSrv.URL,
		ForecastURL:  fcSrv.URL,
	})
}

func TestForecast(t *testing.T) {
	svc := newTestService(t,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Lisbon", r.URL.Query().Get("name"))
			w.Write([]byte(`{"results":[{"name":"Lisbon","latitude":38.72,"longitude":-9.14,"country":"Portugal"}]}`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "3", r.URL.Query().Get("forecast_days"))
			w.Write([]byte(`{"daily":{
				"time":["2026-08-28","2026-08-29","2026-08-30"],
				"temperature_2m_max":[29.1,30.4,27.8],
				"temperature_2m_min":[18.2,19.0,17.5],
				"precipitation_sum":[0.0,0.0,2.4],
				"weather_code":[0,2,61]}}`))
		},
	)

	report, err := svc.Forecast(context.Background(), "Lisbon", 3)
	require.NoError(t, err)

	assert.Equal(t, "Lisbon, Portugal", report.Location)
	assert.InDelta(t, 38.72, report.Latitude, 1e-9)
	require.Len(t, report.Days, 3)
	assert.Equal(t, "clear sky", report.Days[0].Summary)
	assert.Equal(t, "partly cloudy", report.Days[1].Summary)
	assert.Equal(t, "rain", report.Days[2].Summary)
	assert.InDelta(t, 29.1, report.Days[0].MaxTempC, 1e-9)
	assert.InDelta(t, 2.4, report.Days[2].PrecipitationMM, 1e-9)
}

func TestForecastUnknownLocation(t *testing.T) {
	svc := newTestService(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"results":[]}`))
		},
		func(w http.ResponseWriter, _ *http.Request) {
			t.Error("forecast must not be called when geocoding finds nothing")
		},
	)

	_, err := svc.Forecast(context.Background(), "Nowhereville", 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestForecastEmptyLocation(t *testing.T) {
	svc := NewService(Config{})

	_, err := svc.Forecast(context.Background(), "", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestForecastClampsDays(t *testing.T) {
	var gotDays string
	svc := newTestService(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"results":[{"name":"Oslo","latitude":59.9,"longitude":10.8,"country":"Norway"}]}`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			gotDays = r.URL.Query().Get("forecast_days")
			w.Write([]byte(`{"daily":{"time":[],"temperature_2m_max":[],"temperature_2m_min":[],"precipitation_sum":[],"weather_code":[]}}`))
		},
	)

	_, err := svc.Forecast(context.Background(), "Oslo", 99)
	require.NoError(t, err)
	assert.Equal(t, "16", gotDays)

	_, err = svc.Forecast(context.Background(), "Oslo", 0)
	require.NoError(t, err)
	assert.Equal(t, "3", gotDays, "non-positive days falls back to the default")
}

func TestForecastUpstreamRateLimit(t *testing.T) {
	svc := newTestService(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		func(w http.ResponseWriter, _ *http.Request) {},
	)

	_, err := svc.Forecast(context.Background(), "Lisbon", 3)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
