package domain

import "time"

// WeatherDay is one day of forecast.
type WeatherDay struct {
	// Date is the forecast day.
	Date time.Time

	// MinTempC is the daily minimum temperature in Celsius.
	MinTempC float64

	// MaxTempC is the daily maximum temperature in Celsius.
	MaxTempC float64

	// PrecipitationMM is the expected precipitation sum in millimetres.
	PrecipitationMM float64

	// Summary is a human-readable condition ("clear sky", "light rain").
	Summary string
}

// WeatherReport is a geocoded multi-day forecast for a location.
type WeatherReport struct {
	// Location is the resolved place name.
	Location string

	// Latitude of the resolved location.
	Latitude float64

	// Longitude of the resolved location.
	Longitude float64

	// Days holds one entry per forecast day, today first.
	Days []WeatherDay
}
