package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// MockWeatherClient is a mock implementation of the WeatherClient interface.
type MockWeatherClient struct {
	mock.Mock
}

// GetCurrentWeather mocks the weather client GetCurrentWeather method.
//
// Parameters:
//   - ctx: Context for the request
//   - coords: Geographic coordinates
//
// Returns:
//   - *ports.WeatherData: Mocked weather data
//   - error: Mocked error if configured
func (m *MockWeatherClient) GetCurrentWeather(ctx context.Context, coords domain.Coordinates) (*ports.WeatherData, error) {
	args := m.Called(ctx, coords)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ports.WeatherData), args.Error(1)
}

// MockForecaster is a mock implementation of the Forecaster interface.
type MockForecaster struct {
	mock.Mock
}

// Forecast mocks the forecaster Forecast method.
func (m *MockForecaster) Forecast(ctx context.Context, coords domain.Coordinates, days int) (*domain.Forecast, error) {
	args := m.Called(ctx, coords, days)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Forecast), args.Error(1)
}

// MockCacheService is a mock implementation of the CacheService interface.
type MockCacheService struct {
	mock.Mock
}

// Get mocks the cache Get method.
//
// Parameters:
//   - ctx: Context for the request
//   - key: Cache key
//
// Returns:
//   - []byte: Mocked cached data
//   - error: Mocked error if configured
func (m *MockCacheService) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// Set mocks the cache Set method.
func (m *MockCacheService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// Delete mocks the cache Delete method.
func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Clear mocks the cache Clear method.
func (m *MockCacheService) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRepository is a mock implementation of the DatabaseRepository interface.
type MockRepository struct {
	mock.Mock
}

// LogAudit mocks the repository LogAudit method.
func (m *MockRepository) LogAudit(ctx context.Context, log ports.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

// LogForecastRequest mocks the repository LogForecastRequest method.
func (m *MockRepository) LogForecastRequest(ctx context.Context, req ports.ForecastRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// GetRequestStats mocks the repository GetRequestStats method.
func (m *MockRepository) GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	args := m.Called(ctx, since)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]interface{}), args.Error(1)
}

// MockMetrics is a mock implementation of the ForecastMetrics interface.
type MockMetrics struct {
	mock.Mock
}

// RecordForecast mocks the metrics RecordForecast method.
func (m *MockMetrics) RecordForecast(ctx context.Context, mode domain.ForecastMode, trainingRows int, duration time.Duration) {
	m.Called(ctx, mode, trainingRows, duration)
}

// RecordCacheHit mocks the metrics RecordCacheHit method.
func (m *MockMetrics) RecordCacheHit(ctx context.Context, key string) {
	m.Called(ctx, key)
}

// RecordCacheMiss mocks the metrics RecordCacheMiss method.
func (m *MockMetrics) RecordCacheMiss(ctx context.Context, key string) {
	m.Called(ctx, key)
}
