// Package weather provides the forecast tool adapter backed by the
// Open-Meteo API. No credential is required.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.WeatherService = (*Service)(nil)

// Default configuration values.
const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1"
	DefaultForecastURL  = "https://api.open-meteo.com/v1"
	DefaultTimeout      = 15 * time.Second

	// MaxForecastDays is the upper bound Open-Meteo serves.
	MaxForecastDays = 16
)

// Config holds configuration for the weather service.
type Config struct {
	// GeocodingURL is the geocoding API base URL.
	GeocodingURL string

	// ForecastURL is the forecast API base URL.
	ForecastURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Service resolves place names and fetches daily forecasts.
type Service struct {
	client       *http.Client
	geocodingURL string
	forecastURL  string
	limiter      *rate.Limiter
}

// NewService creates a weather service.
func NewService(cfg Config) *Service {
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = DefaultGeocodingURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Service{
		client:       &http.Client{Timeout: cfg.Timeout},
		geocodingURL: cfg.GeocodingURL,
		forecastURL:  cfg.ForecastURL,
		// Open-Meteo asks non-commercial users to stay under 10 req/s.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// geocodeResponse is the geocoding API response format.
type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// forecastResponse is the forecast API response format.
type forecastResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

// Forecast geocodes the location and returns up to days of daily forecast.
func (s *Service) Forecast(ctx context.Context, location string, days int) (domain.WeatherReport, error) {
	if location == "" {
		return domain.WeatherReport{}, fmt.Errorf("%w: location is empty", domain.ErrInvalidInput)
	}
	if days <= 0 {
		days = 3
	}
	if days > MaxForecastDays {
		days = MaxForecastDays
	}

	report, err := s.geocode(ctx, location)
	if err != nil {
		return domain.WeatherReport{}, err
	}

	daily, err := s.forecast(ctx, report.Latitude, report.Longitude, days)
	if err != nil {
		return domain.WeatherReport{}, err
	}
	report.Days = daily
	return report, nil
}

// geocode resolves a place name to coordinates, best match first.
func (s *Service) geocode(ctx context.Context, location string) (domain.WeatherReport, error) {
	query := url.Values{}
	query.Set("name", location)
	query.Set("count", "1")

	var resp geocodeResponse
	if err := s.fetch(ctx, s.geocodingURL+"/search?"+query.Encode(), &resp); err != nil {
		return domain.WeatherReport{}, fmt.Errorf("geocoding %q: %w", location, err)
	}
	if len(resp.Results) == 0 {
		return domain.WeatherReport{}, fmt.Errorf("%w: no place named %q", domain.ErrNotFound, location)
	}

	best := resp.Results[0]
	name := best.Name
	if best.Country != "" {
		name += ", " + best.Country
	}
	return domain.WeatherReport{
		Location:  name,
		Latitude:  best.Latitude,
		Longitude: best.Longitude,
	}, nil
}

// forecast fetches the daily forecast for the coordinates.
func (s *Service) forecast(ctx context.Context, lat, lon float64, days int) ([]domain.WeatherDay, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	query.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code")
	query.Set("timezone", "auto")
	query.Set("forecast_days", strconv.Itoa(days))

	var resp forecastResponse
	if err := s.fetch(ctx, s.forecastURL+"/forecast?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}

	daily := resp.Daily
	result := make([]domain.WeatherDay, 0, len(daily.Time))
	for i, date := range daily.Time {
		day := domain.WeatherDay{}
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("parsing forecast date %q: %w", date, err)
		}
		day.Date = parsed
		if i < len(daily.TemperatureMin) {
			day.MinTempC = daily.TemperatureMin[i]
		}
		if i < len(daily.TemperatureMax) {
			day.MaxTempC = daily.TemperatureMax[i]
		}
		if i < len(daily.PrecipitationSum) {
			day.PrecipitationMM = daily.PrecipitationSum[i]
		}
		if i < len(daily.WeatherCode) {
			day.Summary = weatherCodeSummary(daily.WeatherCode[i])
		}
		result = append(result, day)
	}
	return result, nil
}

// fetch performs one rate-limited GET and decodes the JSON response.
func (s *Service) fetch(ctx context.Context, rawURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests {
			return domain.ErrRateLimited
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// weatherCodeSummary maps WMO interpretation codes to human-readable
// conditions.
func weatherCodeSummary(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
