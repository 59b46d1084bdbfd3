package app

import (
	"context"
	"time"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
	"github.com/sean-rowe/forecast-service/internal/infrastructure/circuitbreaker"
)

// CircuitBreakerWeatherClient guards current-weather calls with a breaker.
type CircuitBreakerWeatherClient struct {
	client ports.WeatherClient
	cb     *circuitbreaker.Breaker
}

// GetCurrentWeather calls the wrapped client unless the breaker is open.
func (c *CircuitBreakerWeatherClient) GetCurrentWeather(ctx context.Context, coords domain.Coordinates) (*ports.WeatherData, error) {
	return circuitbreaker.Call(ctx, c.cb, "get-current-weather", func() (*ports.WeatherData, error) {
		return c.client.GetCurrentWeather(ctx, coords)
	})
}

// CircuitBreakerHistorySource guards history fetches with a breaker and a
// per-fetch timeout. Partial results returned together with an error are
// passed through so the forecaster can still use them.
type CircuitBreakerHistorySource struct {
	source  ports.HistoricalDataSource
	cb      *circuitbreaker.Breaker
	timeout time.Duration
}

// FetchHistoricalObservations calls the wrapped source unless the breaker is
// open. An open breaker is reported as a source error with no data.
func (s *CircuitBreakerHistorySource) FetchHistoricalObservations(ctx context.Context, coords domain.Coordinates, daysBack int) ([]domain.Observation, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var obs []domain.Observation

	err := s.cb.Execute(ctx, "fetch-history", func() error {
		var err error
		obs, err = s.source.FetchHistoricalObservations(ctx, coords, daysBack)

		return err
	})

	return obs, err
}
