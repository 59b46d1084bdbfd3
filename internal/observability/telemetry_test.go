package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

func newTestTelemetry(t *testing.T) (*Telemetry, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	tel, err := newTelemetry("forecast-service-test",
		sdktrace.NewTracerProvider(),
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	return tel, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func TestTelemetry_RecordForecast(t *testing.T) {
	tel, reader := newTestTelemetry(t)
	ctx := context.Background()

	tel.RecordForecast(ctx, domain.ModeModel, 8735, 120*time.Millisecond)
	tel.RecordForecast(ctx, domain.ModeModel, 100, 80*time.Millisecond)
	tel.RecordForecast(ctx, domain.ModeDegraded, 0, 5*time.Millisecond)

	metrics := collect(t, reader)

	sum, ok := metrics["forecasts_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byMode := map[string]int64{}

	for _, dp := range sum.DataPoints {
		mode, _ := dp.Attributes.Value(attribute.Key("mode"))
		byMode[mode.AsString()] = dp.Value
	}

	assert.Equal(t, map[string]int64{"model": 2, "degraded": 1}, byMode)

	rows, ok := metrics["forecast_training_rows"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, rows.DataPoints, 1)
	assert.Equal(t, uint64(2), rows.DataPoints[0].Count)
	assert.Equal(t, int64(8835), rows.DataPoints[0].Sum)
}

func TestTelemetry_RecordRequestCountsErrors(t *testing.T) {
	tel, reader := newTestTelemetry(t)
	ctx := context.Background()

	tel.RecordRequest(ctx, "GET", "/api/v1/forecast", 200, time.Millisecond)
	tel.RecordRequest(ctx, "GET", "/api/v1/forecast", 503, time.Millisecond)
	tel.RecordCacheHit(ctx, "forecast")
	tel.RecordCacheMiss(ctx, "forecast")

	metrics := collect(t, reader)

	errs, ok := metrics["errors_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)

	assert.Contains(t, metrics, "cache_hits_total")
	assert.Contains(t, metrics, "cache_misses_total")
}
