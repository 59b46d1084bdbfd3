// Package ports declares the interfaces between the forecasting core and its
// adapters: the services the core offers and the collaborators it consumes.
package ports

import (
	"context"
	"time"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// WeatherService serves current conditions. It is a passthrough to the
// provider and does not involve the forecaster.
type WeatherService interface {
	GetWeather(ctx context.Context, coords domain.Coordinates) (*domain.Weather, error)
}

// ForecastService produces daily forecasts.
type ForecastService interface {
	Forecast(ctx context.Context, coords domain.Coordinates, days int) (*domain.Forecast, error)
}

// Forecaster computes a forecast from historical observations. It does no
// request-level validation mapping and is implemented by forecast.Driver and
// by caching decorators around it.
type Forecaster interface {
	Forecast(ctx context.Context, coords domain.Coordinates, days int) (*domain.Forecast, error)
}

// ForecastMetrics receives forecast-level measurements.
type ForecastMetrics interface {
	RecordForecast(ctx context.Context, mode domain.ForecastMode, trainingRows int, duration time.Duration)
	RecordCacheHit(ctx context.Context, key string)
	RecordCacheMiss(ctx context.Context, key string)
}

// WeatherClient fetches current conditions from an external provider.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, coords domain.Coordinates) (*WeatherData, error)
}

// HistoricalDataSource supplies hourly observations for up to daysBack days
// before today. The result is chronological and may be shorter than
// requested or empty.
type HistoricalDataSource interface {
	FetchHistoricalObservations(ctx context.Context, coords domain.Coordinates, daysBack int) ([]domain.Observation, error)
}

// WeatherData is the provider-neutral current-weather payload.
type WeatherData struct {
	Temperature   float64
	Unit          domain.TemperatureUnit
	Forecast      string
	ConditionCode int
	WindSpeedKmh  float64
	ObservedAt    time.Time
}

// CacheService stores opaque values with a TTL.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// RateLimitService decides whether an identifier may make another request.
type RateLimitService interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, identifier string) error
}

// ForecastRequest is a persisted record of one served forecast.
type ForecastRequest struct {
	RequestID      string
	Latitude       float64
	Longitude      float64
	HorizonDays    int
	Mode           string
	HistoryHours   int
	TrainingRows   int
	ResponseTimeMs int
	CacheHit       bool
}

// AuditLog is a persisted record of one HTTP request.
type AuditLog struct {
	CorrelationID string
	RequestID     string
	Method        string
	Path          string
	StatusCode    int
	DurationMs    int64
	UserAgent     string
	RemoteAddr    string
	ErrorMessage  *string
	Metadata      map[string]interface{}
}

// DatabaseRepository persists request logs.
type DatabaseRepository interface {
	LogAudit(ctx context.Context, log AuditLog) error
	LogForecastRequest(ctx context.Context, req ForecastRequest) error
	GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error)
}
