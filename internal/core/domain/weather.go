// Package domain contains the core business entities of the forecast service.
// The types here are independent of transport, storage and the forecasting
// algorithms that consume them.
package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Temperature represents a temperature measurement with its unit.
type Temperature struct {
	// Value is the numeric temperature measurement
	Value float64

	// Unit specifies whether the temperature is in Celsius or Fahrenheit
	Unit TemperatureUnit
}

// TemperatureUnit defines the unit of temperature measurement.
type TemperatureUnit string

const (
	// Celsius represents temperature in Celsius scale
	Celsius TemperatureUnit = "C"

	// Fahrenheit represents temperature in Fahrenheit scale
	Fahrenheit TemperatureUnit = "F"
)

// CelsiusToFahrenheit converts a Celsius reading to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// TemperatureCategory classifies temperature into human-readable categories.
type TemperatureCategory string

const (
	// Hot indicates temperatures that feel warm to hot
	Hot TemperatureCategory = "hot"

	// Cold indicates temperatures that feel cool to cold
	Cold TemperatureCategory = "cold"

	// Moderate indicates comfortable temperatures between hot and cold
	Moderate TemperatureCategory = "moderate"
)

// Coordinates represent a geographic location using WGS84 latitude and longitude.
type Coordinates struct {
	// Latitude specifies the north-south position (-90 to 90 degrees)
	Latitude float64

	// Longitude specifies the east-west position (-180 to 180 degrees)
	Longitude float64
}

// Validate checks if the coordinates are within valid geographic bounds.
// NaN values are rejected along with out-of-range ones.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %f", c.Latitude)
	}

	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %f", c.Longitude)
	}

	return nil
}

// Key renders the coordinates rounded to four decimals (about 11 m), which is
// the precision used for cache keys and log lines.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// Weather represents a current-conditions report for a specific location.
type Weather struct {
	// ID uniquely identifies this weather report
	ID uuid.UUID

	// Coordinates specify the geographic location
	Coordinates Coordinates

	// Temperature contains the current temperature measurement
	Temperature Temperature

	// Forecast provides a human-readable weather description
	Forecast string

	// ConditionCode is the WMO code reported for the current conditions
	ConditionCode int

	// WindSpeedKmh is the current 10 m wind speed
	WindSpeedKmh float64

	// Category classifies the temperature as hot, cold, or moderate
	Category TemperatureCategory

	// ObservedAt is the provider's timestamp for the reading
	ObservedAt time.Time

	// FetchedAt records when this weather data was retrieved
	FetchedAt time.Time
}
