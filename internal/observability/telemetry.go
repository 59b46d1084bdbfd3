// Package observability sets up OpenTelemetry tracing and metrics. Metrics
// are exported through the Prometheus exporter and served on /metrics.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// Telemetry holds the providers and the service's instruments.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	logger         *zap.Logger

	RequestCounter   metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	ErrorCounter     metric.Int64Counter
	DBQueryDuration  metric.Float64Histogram
	CacheHitCounter  metric.Int64Counter
	CacheMissCounter metric.Int64Counter

	ForecastCounter      metric.Int64Counter
	ForecastDuration     metric.Float64Histogram
	ForecastTrainingRows metric.Int64Histogram
}

var _ ports.ForecastMetrics = (*Telemetry)(nil)

// Config selects the exporters. An empty OTLPEndpoint keeps spans in process
// and exports nothing.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
}

// InitTelemetry builds the providers, installs them globally and creates the
// instruments.
//
// Parameters:
//   - ctx: Context for exporter setup
//   - cfg: Service identity and exporter settings
//   - logger: Zap logger
//
// Returns:
//   - *Telemetry: Ready telemetry, stopped with Shutdown
//   - error: Resource, exporter or instrument creation failure
func InitTelemetry(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := initTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer provider: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return newTelemetry(cfg.ServiceName, tracerProvider, meterProvider, logger)
}

func newTelemetry(name string, tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider, logger *zap.Logger) (*Telemetry, error) {
	meter := mp.Meter(name)
	t := &Telemetry{
		TracerProvider: tp,
		MeterProvider:  mp,
		Tracer:         tp.Tracer(name),
		Meter:          meter,
		logger:         logger,
	}

	var err error

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
	}{
		{&t.RequestCounter, "http_requests_total", "Total number of HTTP requests"},
		{&t.ErrorCounter, "errors_total", "Total number of errors"},
		{&t.CacheHitCounter, "cache_hits_total", "Total number of cache hits"},
		{&t.CacheMissCounter, "cache_misses_total", "Total number of cache misses"},
		{&t.ForecastCounter, "forecasts_total", "Forecasts computed, by mode"},
	}

	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst         *metric.Float64Histogram
		name        string
		description string
	}{
		{&t.RequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds"},
		{&t.DBQueryDuration, "db_query_duration_seconds", "Database query duration in seconds"},
		{&t.ForecastDuration, "forecast_duration_seconds", "Time to compute a forecast in seconds"},
	}

	for _, h := range histograms {
		*h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.description), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", h.name, err)
		}
	}

	t.ForecastTrainingRows, err = meter.Int64Histogram(
		"forecast_training_rows",
		metric.WithDescription("Rows in the regression training table of a forecast"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create forecast_training_rows: %w", err)
	}

	return t, nil
}

func initTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptrace.New(
			ctx,
			otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlptracegrpc.WithInsecure(),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// RecordRequest counts one HTTP request. path is the route template.
func (t *Telemetry) RecordRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)

	t.RequestCounter.Add(ctx, 1, attrs)
	t.RequestDuration.Record(ctx, duration.Seconds(), attrs)

	if statusCode >= 400 {
		t.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// RecordDBQuery records the latency of one database operation.
func (t *Telemetry) RecordDBQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	t.DBQueryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("error", err != nil),
	))

	if err != nil {
		t.ErrorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "database"),
			attribute.String("operation", operation),
		))
	}
}

// RecordForecast counts one computed forecast by mode. Training rows are
// only recorded for model forecasts.
func (t *Telemetry) RecordForecast(ctx context.Context, mode domain.ForecastMode, trainingRows int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("mode", string(mode)))

	t.ForecastCounter.Add(ctx, 1, attrs)
	t.ForecastDuration.Record(ctx, duration.Seconds(), attrs)

	if mode == domain.ModeModel {
		t.ForecastTrainingRows.Record(ctx, int64(trainingRows))
	}
}

// RecordCacheHit counts a hit in the named cache.
func (t *Telemetry) RecordCacheHit(ctx context.Context, cache string) {
	t.CacheHitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", cache)))
}

// RecordCacheMiss counts a miss in the named cache.
func (t *Telemetry) RecordCacheMiss(ctx context.Context, cache string) {
	t.CacheMissCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", cache)))
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}
