package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// requestLogTimeout bounds the write of one forecast request record.
const requestLogTimeout = 2 * time.Second

type forecastService struct {
	engine  ports.Forecaster
	repo    ports.DatabaseRepository
	metrics ports.ForecastMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewForecastService creates the request-facing forecast service. repo and
// metrics are optional.
//
// Parameters:
//   - engine: Forecaster doing the computation, usually a cached driver
//   - repo: Request log store, may be nil
//   - metrics: Forecast instruments, may be nil
//   - logger: Structured logger
//
// Returns:
//   - ports.ForecastService: Service translating failures into WeatherError
func NewForecastService(
	engine ports.Forecaster,
	repo ports.DatabaseRepository,
	metrics ports.ForecastMetrics,
	logger *zap.Logger,
) ports.ForecastService {
	return &forecastService{
		engine:  engine,
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Forecast validates the request, runs the forecaster and records the
// outcome. Every returned error is a *domain.WeatherError.
func (s *forecastService) Forecast(ctx context.Context, coords domain.Coordinates, days int) (*domain.Forecast, error) {
	ctx, span := otel.Tracer("forecast").Start(ctx, "ForecastService.Forecast")
	defer span.End()

	span.SetAttributes(
		attribute.Float64("latitude", coords.Latitude),
		attribute.Float64("longitude", coords.Longitude),
		attribute.Int("days", days),
	)

	if err := coords.Validate(); err != nil {
		s.logger.Warn("invalid coordinates", zap.Error(err))
		span.SetStatus(codes.Error, "invalid coordinates")

		return nil, &domain.WeatherError{
			Code:    domain.CodeInvalidCoordinates,
			Message: "The provided coordinates are invalid",
			Cause:   err,
		}
	}

	if days < 1 || days > domain.MaxHorizonDays {
		span.SetStatus(codes.Error, "invalid horizon")

		return nil, &domain.WeatherError{
			Code:    domain.CodeInvalidHorizon,
			Message: fmt.Sprintf("days must be between 1 and %d", domain.MaxHorizonDays),
			Cause:   fmt.Errorf("%w: %d", domain.ErrInvalidHorizon, days),
		}
	}

	start := s.now()

	fc, err := s.engine.Forecast(ctx, coords, days)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		s.logger.Error("forecast failed",
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude),
			zap.Int("days", days),
			zap.Error(err))

		return nil, toWeatherError(err)
	}

	elapsed := s.now().Sub(start)

	span.SetAttributes(
		attribute.String("mode", string(fc.Mode)),
		attribute.Int("training_rows", fc.TrainingRows),
		attribute.Bool("cached", fc.Cached),
	)

	if s.metrics != nil && !fc.Cached {
		s.metrics.RecordForecast(ctx, fc.Mode, fc.TrainingRows, elapsed)
	}

	s.logRequest(ctx, fc, days, elapsed)

	s.logger.Info("forecast produced",
		zap.Float64("latitude", coords.Latitude),
		zap.Float64("longitude", coords.Longitude),
		zap.Int("days", days),
		zap.String("mode", string(fc.Mode)),
		zap.Int("history_hours", fc.HistoryHours),
		zap.Int("training_rows", fc.TrainingRows),
		zap.Bool("cached", fc.Cached),
		zap.Duration("duration", elapsed))

	return fc, nil
}

func (s *forecastService) logRequest(ctx context.Context, fc *domain.Forecast, days int, elapsed time.Duration) {
	if s.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestLogTimeout)
	defer cancel()

	err := s.repo.LogForecastRequest(ctx, ports.ForecastRequest{
		RequestID:      uuid.NewString(),
		Latitude:       fc.Coordinates.Latitude,
		Longitude:      fc.Coordinates.Longitude,
		HorizonDays:    days,
		Mode:           string(fc.Mode),
		HistoryHours:   fc.HistoryHours,
		TrainingRows:   fc.TrainingRows,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		CacheHit:       fc.Cached,
	})
	if err != nil {
		s.logger.Warn("failed to log forecast request", zap.Error(err))
	}
}

func toWeatherError(err error) *domain.WeatherError {
	var werr *domain.WeatherError
	if errors.As(err, &werr) {
		return werr
	}

	switch {
	case errors.Is(err, domain.ErrHistoricalSourceUnavailable):
		return &domain.WeatherError{
			Code:    domain.CodeHistoryUnavailable,
			Message: "Historical weather data is unavailable",
			Cause:   err,
		}
	case errors.Is(err, domain.ErrInvalidHorizon):
		return &domain.WeatherError{
			Code:    domain.CodeInvalidHorizon,
			Message: fmt.Sprintf("days must be between 1 and %d", domain.MaxHorizonDays),
			Cause:   err,
		}
	default:
		return &domain.WeatherError{
			Code:    domain.CodeForecastFailed,
			Message: "Failed to produce forecast",
			Cause:   err,
		}
	}
}
