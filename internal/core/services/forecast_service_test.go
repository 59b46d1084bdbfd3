package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

var paris = domain.Coordinates{Latitude: 48.8566, Longitude: 2.3522}

func sampleForecast(mode domain.ForecastMode, days int) *domain.Forecast {
	first := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	fc := &domain.Forecast{
		Coordinates:  paris,
		Mode:         mode,
		HistoryHours: 2000,
		TrainingRows: 1975,
		GeneratedAt:  time.Date(2024, time.June, 9, 12, 0, 0, 0, time.UTC),
	}

	for i := 0; i < days; i++ {
		fc.Days = append(fc.Days, domain.DailyForecast{
			Date:                 first.AddDate(0, 0, i),
			TemperatureC:         21.5,
			ConditionCode:        domain.WMOMainlyClear,
			ConditionDescription: domain.DescribeWMO(domain.WMOMainlyClear),
		})
	}

	return fc
}

func TestForecastService_Forecast(t *testing.T) {
	tests := []struct {
		name         string
		coords       domain.Coordinates
		days         int
		engineResult *domain.Forecast
		engineErr    error
		callsEngine  bool
		expectedCode string
	}{
		{
			name:         "model forecast",
			coords:       paris,
			days:         5,
			engineResult: sampleForecast(domain.ModeModel, 5),
			callsEngine:  true,
		},
		{
			name:         "degraded forecast is a success",
			coords:       paris,
			days:         3,
			engineResult: sampleForecast(domain.ModeDegraded, 3),
			callsEngine:  true,
		},
		{
			name:         "invalid coordinates",
			coords:       domain.Coordinates{Latitude: -91, Longitude: 0},
			days:         5,
			expectedCode: domain.CodeInvalidCoordinates,
		},
		{
			name:         "zero days",
			coords:       paris,
			days:         0,
			expectedCode: domain.CodeInvalidHorizon,
		},
		{
			name:         "beyond maximum horizon",
			coords:       paris,
			days:         domain.MaxHorizonDays + 1,
			expectedCode: domain.CodeInvalidHorizon,
		},
		{
			name:         "history unavailable",
			coords:       paris,
			days:         5,
			engineErr:    fmt.Errorf("%w: %w", domain.ErrHistoricalSourceUnavailable, errors.New("timeout")),
			callsEngine:  true,
			expectedCode: domain.CodeHistoryUnavailable,
		},
		{
			name:         "model contract violation",
			coords:       paris,
			days:         5,
			engineErr:    fmt.Errorf("temperature: %w", domain.ErrModelNotFitted),
			callsEngine:  true,
			expectedCode: domain.CodeForecastFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockForecaster)
			repo := new(MockRepository)
			metrics := new(MockMetrics)
			service := NewForecastService(engine, repo, metrics, zap.NewNop())

			if tt.callsEngine {
				engine.On("Forecast", mock.Anything, tt.coords, tt.days).Return(tt.engineResult, tt.engineErr)
			}

			if tt.engineResult != nil {
				repo.On("LogForecastRequest", mock.Anything, mock.MatchedBy(func(req ports.ForecastRequest) bool {
					return req.HorizonDays == tt.days &&
						req.Mode == string(tt.engineResult.Mode) &&
						req.TrainingRows == tt.engineResult.TrainingRows &&
						req.RequestID != "" &&
						!req.CacheHit
				})).Return(nil)
				metrics.On("RecordForecast", mock.Anything, tt.engineResult.Mode, tt.engineResult.TrainingRows, mock.Anything).Return()
			}

			fc, err := service.Forecast(context.Background(), tt.coords, tt.days)

			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.Nil(t, fc)

				var werr *domain.WeatherError
				require.ErrorAs(t, err, &werr)
				assert.Equal(t, tt.expectedCode, werr.Code)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.engineResult, fc)
			}

			engine.AssertExpectations(t)
			repo.AssertExpectations(t)
			metrics.AssertExpectations(t)
		})
	}
}

func TestForecastService_RepositoryFailureDoesNotFailRequest(t *testing.T) {
	engine := new(MockForecaster)
	repo := new(MockRepository)
	service := NewForecastService(engine, repo, nil, zap.NewNop())

	engine.On("Forecast", mock.Anything, paris, 2).Return(sampleForecast(domain.ModeModel, 2), nil)
	repo.On("LogForecastRequest", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	fc, err := service.Forecast(context.Background(), paris, 2)
	require.NoError(t, err)
	assert.Len(t, fc.Days, 2)
}

func TestForecastService_CachedForecastSkipsMetrics(t *testing.T) {
	engine := new(MockForecaster)
	repo := new(MockRepository)
	metrics := new(MockMetrics)
	service := NewForecastService(engine, repo, metrics, zap.NewNop())

	cached := sampleForecast(domain.ModeModel, 1)
	cached.Cached = true

	engine.On("Forecast", mock.Anything, paris, 1).Return(cached, nil)
	repo.On("LogForecastRequest", mock.Anything, mock.MatchedBy(func(req ports.ForecastRequest) bool {
		return req.CacheHit
	})).Return(nil)

	_, err := service.Forecast(context.Background(), paris, 1)
	require.NoError(t, err)

	metrics.AssertNotCalled(t, "RecordForecast", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestToWeatherError_PassesThroughWeatherError(t *testing.T) {
	original := &domain.WeatherError{Code: "CUSTOM", Message: "custom"}

	assert.Same(t, original, toWeatherError(fmt.Errorf("wrapped: %w", original)))
}
