package domain

import "time"

// Horizon limits for a daily forecast request.
const (
	DefaultHorizonDays = 5
	MaxHorizonDays     = 16

	// MaxHistoryDays is the largest window the historical provider is asked for.
	MaxHistoryDays = 365
)

// Observation is one hourly historical sample for a fixed coordinate.
// WeatherCode is negative when the provider did not report one.
type Observation struct {
	Time            time.Time
	Coordinates     Coordinates
	TemperatureC    float64
	HumidityPct     float64
	PressureHPa     float64
	WindSpeedKmh    float64
	PrecipitationMm float64
	CloudCoverPct   float64
	WeatherCode     int
}

// DailyForecast is the output unit of the forecaster.
type DailyForecast struct {
	// Date is the calendar day at midnight in the observations' location
	Date time.Time

	// TemperatureC is the predicted mean temperature for the day
	TemperatureC float64

	// ConditionCode is the WMO weather code chosen for the day
	ConditionCode int

	// ConditionDescription is the human-readable form of ConditionCode
	ConditionDescription string

	// CloudCoverPct, PrecipitationMm and WindSpeedKmh are the inputs that
	// produced ConditionCode
	CloudCoverPct   float64
	PrecipitationMm float64
	WindSpeedKmh    float64

	// Degraded is set when the day came from the seasonal fallback rather than the model
	Degraded bool
}

// ForecastMode records which path produced a forecast.
type ForecastMode string

const (
	ModeModel    ForecastMode = "model"
	ModeDegraded ForecastMode = "degraded"
)

// Forecast is a complete daily forecast for one location.
type Forecast struct {
	Coordinates Coordinates
	Days        []DailyForecast
	Mode        ForecastMode

	// HistoryHours is the number of usable observations the forecast was built from
	HistoryHours int

	// TrainingRows is the size of the regression training table, zero when degraded
	TrainingRows int

	GeneratedAt time.Time

	// Cached is set when the forecast was served from the forecast cache
	Cached bool
}
