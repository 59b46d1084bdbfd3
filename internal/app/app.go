// Package app wires the forecast service together and manages its lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/adapters/primary/rest"
	"github.com/sean-rowe/forecast-service/internal/adapters/secondary/openmeteo"
	"github.com/sean-rowe/forecast-service/internal/config"
	"github.com/sean-rowe/forecast-service/internal/core/forecast"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
	"github.com/sean-rowe/forecast-service/internal/core/services"
	"github.com/sean-rowe/forecast-service/internal/infrastructure/cache"
	"github.com/sean-rowe/forecast-service/internal/infrastructure/circuitbreaker"
	"github.com/sean-rowe/forecast-service/internal/infrastructure/database"
	"github.com/sean-rowe/forecast-service/internal/infrastructure/ratelimit"
	"github.com/sean-rowe/forecast-service/internal/middleware"
	"github.com/sean-rowe/forecast-service/internal/observability"
	"github.com/sean-rowe/forecast-service/internal/version"
)

// App manages the application lifecycle and dependencies.
type App struct {
	cfg       *config.Config
	server    *http.Server
	logger    *zap.Logger
	telemetry *observability.Telemetry
	db        *database.PostgresDB
	redis     redis.UniversalClient
	breakers  *circuitbreaker.Manager
	closers   []io.Closer
}

// New creates a new application instance from the environment.
//
// Returns:
//   - *App: Configured application instance
//   - error: Invalid configuration or logger initialization error
func New() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewWithConfig(cfg, logger), nil
}

// NewWithConfig creates an application from an explicit configuration.
func NewWithConfig(cfg *config.Config, logger *zap.Logger) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		breakers: circuitbreaker.NewManager(logger),
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg.Level = lvl

	return zcfg.Build()
}

// Start builds every component and starts serving HTTP in the background.
//
// Parameters:
//   - ctx: Context for initialization
//
// Returns:
//   - error: Component construction error
func (a *App) Start(ctx context.Context) error {
	handler, err := a.Handler(ctx)
	if err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	go func() {
		a.logger.Info("starting HTTP server",
			zap.String("port", a.cfg.Server.Port),
			zap.String("environment", a.cfg.Server.Environment))

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	return nil
}

// Handler builds the components and returns the HTTP handler without
// listening. Optional backends that fail to connect are replaced by their
// in-process fallbacks.
func (a *App) Handler(ctx context.Context) (http.Handler, error) {
	if err := a.initTelemetry(ctx); err != nil {
		a.logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
	}

	cacheService, rateLimitService := a.initRedisServices(ctx)

	if err := a.initDatabase(ctx); err != nil {
		a.logger.Warn("failed to connect to database, continuing without it", zap.Error(err))
	}

	var (
		repo    ports.DatabaseRepository
		metrics ports.ForecastMetrics
	)

	if a.db != nil {
		repo = NewDatabaseAdapter(a.db, a.telemetry)
	}

	if a.telemetry != nil {
		metrics = a.telemetry
	}

	weatherClient, historySource := a.initOpenMeteo()

	driver := forecast.NewDriver(historySource, a.logger,
		forecast.WithHistoryDays(a.cfg.Forecast.HistoryDays))
	cached := services.NewCachedForecaster(driver, cacheService, a.cfg.Forecast.CacheTTL, metrics, a.logger)

	handlers := routes{
		weather:  rest.NewWeatherHandler(services.NewWeatherService(weatherClient, a.logger), a.logger),
		forecast: rest.NewForecastHandler(services.NewForecastService(cached, repo, metrics, a.logger), a.logger),
		stats:    rest.NewStatsHandler(repo, a.logger),
		rateLimit: middleware.NewRateLimitMiddleware(
			rateLimitService,
			a.cfg.RateLimit.Requests,
			a.cfg.RateLimit.Window,
			a.logger,
		),
	}

	if repo != nil {
		handlers.audit = middleware.NewAuditMiddleware(repo, a.logger)
	}

	return a.setupRouter(handlers), nil
}

// Stop gracefully shuts down all application components.
func (a *App) Stop() {
	a.logger.Info("shutting down application...")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server gracefully", zap.Error(err))
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", zap.Error(err))
		}
	}

	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown telemetry", zap.Error(err))
		}
	}

	// Sync fails on some platforms for stderr, nothing useful can be done
	_ = a.logger.Sync()
}

// WaitForShutdown blocks until the process receives SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutdown signal received")
}

func (a *App) initTelemetry(ctx context.Context) error {
	telemetryConfig := observability.Config{
		ServiceName:    a.cfg.Observability.ServiceName,
		ServiceVersion: a.cfg.Observability.ServiceVersion,
		Environment:    a.cfg.Observability.Environment,
		OTLPEndpoint:   a.cfg.Observability.OTLPEndpoint,
		SampleRate:     a.cfg.Observability.SampleRate,
	}

	var err error
	a.telemetry, err = observability.InitTelemetry(ctx, telemetryConfig, a.logger)

	return err
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// initRedisServices returns the forecast cache and the request rate limiter,
// both on Redis when it is enabled and reachable and in memory otherwise.
func (a *App) initRedisServices(ctx context.Context) (ports.CacheService, ports.RateLimitService) {
	memoryServices := func() (ports.CacheService, ports.RateLimitService) {
		memLimiter := middleware.NewMemoryRateLimiter(a.logger)
		a.closers = append(a.closers, closerFunc(func() error {
			memLimiter.Close()
			return nil
		}))

		return cache.NewMemoryCache(a.cfg.Forecast.CacheTTL, 10*time.Minute, a.logger), memLimiter
	}

	if !a.cfg.Redis.Enabled {
		a.logger.Info("Redis disabled, using memory-based services")
		return memoryServices()
	}

	client, err := cache.Connect(ctx, cache.Config{
		Addr:         a.cfg.Redis.Addr,
		Password:     a.cfg.Redis.Password,
		DB:           a.cfg.Redis.DB,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		DialTimeout:  a.cfg.Redis.DialTimeout,
		ReadTimeout:  a.cfg.Redis.ReadTimeout,
		WriteTimeout: a.cfg.Redis.WriteTimeout,
	})
	if err != nil {
		a.logger.Warn("Redis connection failed, falling back to memory-based services", zap.Error(err))
		return memoryServices()
	}

	a.logger.Info("Redis connected", zap.String("addr", a.cfg.Redis.Addr))
	a.redis = client
	a.closers = append(a.closers, client)

	return cache.NewRedisCache(client, a.cfg.Redis.KeyPrefix, a.logger),
		ratelimit.NewRedisRateLimiter(client, a.cfg.Redis.KeyPrefix, a.logger)
}

func (a *App) initDatabase(ctx context.Context) error {
	if !a.cfg.Database.Enabled {
		return nil
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:                  a.cfg.Database.Host,
		Port:                  a.cfg.Database.Port,
		User:                  a.cfg.Database.User,
		Password:              a.cfg.Database.Password,
		Database:              a.cfg.Database.Database,
		SSLMode:               a.cfg.Database.SSLMode,
		MaxConnections:        a.cfg.Database.MaxConnections,
		MaxIdleConnections:    a.cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: a.cfg.Database.ConnectionMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	if a.cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB(), a.logger); err != nil {
			_ = db.Close()
			return err
		}
	}

	a.db = db
	a.closers = append(a.closers, db)

	return nil
}

// initOpenMeteo builds the Open-Meteo client and guards each of its two
// operations with its own breaker.
func (a *App) initOpenMeteo() (ports.WeatherClient, ports.HistoricalDataSource) {
	ext := a.cfg.External

	client := openmeteo.NewClient(openmeteo.Config{
		ArchiveURL:        ext.ArchiveURL,
		ForecastURL:       ext.ForecastURL,
		RequestsPerSecond: ext.RequestsPerSecond,
		Burst:             ext.Burst,
		Backoff: openmeteo.BackoffConfig{
			MaxRetries:      ext.MaxRetries,
			InitialInterval: ext.RetryBaseDelay,
			MaxInterval:     10 * ext.RetryBaseDelay,
		},
	}, &http.Client{Timeout: ext.HTTPTimeout}, a.logger)

	breakerCfg := circuitbreaker.Config{
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     ext.BreakerTimeout,
	}

	weather := &CircuitBreakerWeatherClient{
		client: client,
		cb:     a.breakers.GetBreaker("open-meteo-current", breakerCfg),
	}

	history := &CircuitBreakerHistorySource{
		source:  client,
		cb:      a.breakers.GetBreaker("open-meteo-archive", breakerCfg),
		timeout: a.cfg.Forecast.Timeout,
	}

	return weather, history
}

type routes struct {
	weather   *rest.WeatherHandler
	forecast  *rest.ForecastHandler
	stats     *rest.StatsHandler
	rateLimit *middleware.RateLimitMiddleware
	audit     *middleware.AuditMiddleware
}

// setupRouter creates the router with its middleware chain.
func (a *App) setupRouter(h routes) http.Handler {
	router := mux.NewRouter()

	var recorder middleware.RequestRecorder
	if a.telemetry != nil {
		recorder = a.telemetry
	}

	obs := middleware.NewObservabilityMiddleware(nil, recorder, a.logger)
	router.Use(obs.TracingMiddleware, obs.MetricsMiddleware, obs.LoggingMiddleware)

	router.HandleFunc("/health", a.health).Methods(http.MethodGet)
	router.HandleFunc("/version", a.versionInfo).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.stats.GetStats).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	if h.audit != nil {
		api.Use(h.audit.Middleware)
	}

	api.Use(h.rateLimit.Middleware)

	api.HandleFunc("/weather", h.weather.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/forecast", h.forecast.GetForecast).Methods(http.MethodGet)

	return router
}

// health reports the breaker states and the optional backends. The service
// stays healthy with open breakers since forecasts still degrade to
// climatology; they are listed for operators.
func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	if a.db != nil {
		checks["database"] = "ok"

		if err := a.db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if a.redis != nil {
		checks["redis"] = "ok"

		if err := a.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]interface{}{
		"status":           http.StatusText(status),
		"checks":           checks,
		"circuit_breakers": a.breakers.GetStats(),
		"open_breakers":    a.breakers.AnyOpen(),
	}

	writeJSON(w, a.logger, status, body)
}

func (a *App) versionInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.logger, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
