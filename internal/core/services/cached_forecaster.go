package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// DefaultForecastTTL is how long a computed forecast is reused.
const DefaultForecastTTL = time.Hour

// CachedForecaster memoises forecasts per rounded coordinate, horizon and
// issue date. Concurrent misses for the same key share one computation.
type CachedForecaster struct {
	inner   ports.Forecaster
	cache   ports.CacheService
	metrics ports.ForecastMetrics
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
	group   singleflight.Group
}

// NewCachedForecaster wraps inner with cache. A non-positive ttl selects
// DefaultForecastTTL; metrics may be nil.
func NewCachedForecaster(
	inner ports.Forecaster,
	cache ports.CacheService,
	ttl time.Duration,
	metrics ports.ForecastMetrics,
	logger *zap.Logger,
) *CachedForecaster {
	if ttl <= 0 {
		ttl = DefaultForecastTTL
	}

	return &CachedForecaster{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Forecast returns a cached forecast when one exists and computes and stores
// it otherwise. Cache failures never fail the request.
func (c *CachedForecaster) Forecast(ctx context.Context, coords domain.Coordinates, days int) (*domain.Forecast, error) {
	key := c.key(coords, days)

	if fc, ok := c.lookup(ctx, key); ok {
		return fc, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// the computation outlives a cancelled first caller so that the
		// callers sharing it still get a result
		fc, err := c.inner.Forecast(context.WithoutCancel(ctx), coords, days)
		if err != nil {
			return nil, err
		}

		c.store(ctx, key, fc)

		return fc, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug("forecast computation shared", zap.String("key", key))
	}

	// each caller gets its own copy of the days slice
	fc := *v.(*domain.Forecast)
	fc.Days = append([]domain.DailyForecast(nil), fc.Days...)

	return &fc, nil
}

func (c *CachedForecaster) key(coords domain.Coordinates, days int) string {
	return fmt.Sprintf("forecast:v1:%s:%d:%s", coords.Key(), days, c.now().UTC().Format("2006-01-02"))
}

func (c *CachedForecaster) lookup(ctx context.Context, key string) (*domain.Forecast, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil || data == nil {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(ctx, "forecast")
		}

		return nil, false
	}

	var fc domain.Forecast
	if err := json.Unmarshal(data, &fc); err != nil {
		c.logger.Warn("discarding undecodable cached forecast", zap.String("key", key), zap.Error(err))
		_ = c.cache.Delete(ctx, key)

		return nil, false
	}

	if c.metrics != nil {
		c.metrics.RecordCacheHit(ctx, "forecast")
	}

	fc.Cached = true

	return &fc, true
}

func (c *CachedForecaster) store(ctx context.Context, key string, fc *domain.Forecast) {
	data, err := json.Marshal(fc)
	if err != nil {
		c.logger.Warn("failed to encode forecast for cache", zap.Error(err))
		return
	}

	if err := c.cache.Set(context.WithoutCancel(ctx), key, data, c.ttl); err != nil {
		c.logger.Warn("failed to cache forecast", zap.String("key", key), zap.Error(err))
	}
}
