// Package services implements the application use cases on top of the ports:
// current-weather passthrough, request-level forecasting and forecast caching.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// Temperature category thresholds in Fahrenheit.
const (
	coldThresholdF = 50.0
	hotThresholdF  = 85.0
)

type weatherService struct {
	client ports.WeatherClient
	logger *zap.Logger
	now    func() time.Time
}

// NewWeatherService creates the current-conditions service.
func NewWeatherService(client ports.WeatherClient, logger *zap.Logger) ports.WeatherService {
	return &weatherService{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// GetWeather returns the provider's current conditions for coords, with a
// temperature category and a WMO description.
func (s *weatherService) GetWeather(ctx context.Context, coords domain.Coordinates) (*domain.Weather, error) {
	if err := coords.Validate(); err != nil {
		s.logger.Error("invalid coordinates", zap.Error(err))

		return nil, &domain.WeatherError{
			Code:    domain.CodeInvalidCoordinates,
			Message: "The provided coordinates are invalid",
			Cause:   err,
		}
	}

	data, err := s.client.GetCurrentWeather(ctx, coords)
	if err != nil {
		s.logger.Error("failed to get current weather",
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude),
			zap.Error(err))

		return nil, &domain.WeatherError{
			Code:    domain.CodeForecastRetrievalError,
			Message: "Failed to retrieve current weather",
			Cause:   err,
		}
	}

	temperature := domain.Temperature{
		Value: data.Temperature,
		Unit:  data.Unit,
	}

	description := data.Forecast
	if description == "" {
		description = domain.DescribeWMO(data.ConditionCode)
	}

	category := categorizeTemperature(temperature)

	weather := &domain.Weather{
		ID:            uuid.New(),
		Coordinates:   coords,
		Temperature:   temperature,
		Forecast:      description,
		ConditionCode: data.ConditionCode,
		WindSpeedKmh:  data.WindSpeedKmh,
		Category:      category,
		ObservedAt:    data.ObservedAt,
		FetchedAt:     s.now(),
	}

	s.logger.Info("weather retrieved successfully",
		zap.Float64("latitude", coords.Latitude),
		zap.Float64("longitude", coords.Longitude),
		zap.Int("condition_code", data.ConditionCode),
		zap.String("category", string(category)))

	return weather, nil
}

func categorizeTemperature(temp domain.Temperature) domain.TemperatureCategory {
	fahrenheit := temp.Value
	if temp.Unit == domain.Celsius {
		fahrenheit = domain.CelsiusToFahrenheit(temp.Value)
	}

	switch {
	case fahrenheit < coldThresholdF:
		return domain.Cold
	case fahrenheit > hotThresholdF:
		return domain.Hot
	default:
		return domain.Moderate
	}
}
