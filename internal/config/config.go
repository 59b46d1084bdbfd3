// Package config loads the forecast service configuration from environment
// variables, with defaults suitable for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

// Config holds all configuration settings for the forecast service.
type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	External      ExternalConfig
	Forecast      ForecastConfig
	RateLimit     RateLimitConfig
}

// ServerConfig contains HTTP server settings and timeouts.
type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig contains settings for the shared forecast cache and the rate
// limiter. When disabled both fall back to process memory.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig contains PostgreSQL connection settings for the request log.
type DatabaseConfig struct {
	Enabled               bool
	RunMigrations         bool
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// ObservabilityConfig contains settings for tracing and metrics.
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
	LogLevel       string
}

// ExternalConfig contains the Open-Meteo endpoints and outbound limits.
type ExternalConfig struct {
	ArchiveURL        string
	ForecastURL       string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryBaseDelay    time.Duration
	BreakerTimeout    time.Duration
}

// ForecastConfig controls the forecaster.
type ForecastConfig struct {
	// HistoryDays is how many days of hourly history each forecast trains on
	HistoryDays int

	// CacheTTL is how long a computed forecast is reused
	CacheTTL time.Duration

	// Timeout bounds the history fetch of one forecast
	Timeout time.Duration
}

// RateLimitConfig contains inbound rate limiting settings.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables and returns a Config instance.
//
// Returns:
//   - *Config: Configuration with values from environment or defaults
func Load() *Config {
	env := getEnv("ENVIRONMENT", "development")

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     env,
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "forecast-service:"),
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:               getEnvAsBool("DATABASE_ENABLED", false),
			RunMigrations:         getEnvAsBool("DB_RUN_MIGRATIONS", true),
			Host:                  getEnv("DB_HOST", "localhost"),
			Port:                  getEnvAsInt("DB_PORT", 5432),
			User:                  getEnv("DB_USER", "forecast"),
			Password:              getEnv("DB_PASSWORD", ""),
			Database:              getEnv("DB_NAME", "forecast_service"),
			SSLMode:               getEnv("DB_SSLMODE", "disable"),
			MaxConnections:        25,
			MaxIdleConnections:    5,
			ConnectionMaxLifetime: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			ServiceName:    "forecast-service",
			ServiceVersion: getEnv("VERSION", "1.0.0"),
			Environment:    env,
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SampleRate:     getEnvAsFloat("OTEL_SAMPLE_RATE", 0.1),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		External: ExternalConfig{
			ArchiveURL:        getEnv("OPEN_METEO_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),
			ForecastURL:       getEnv("OPEN_METEO_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
			HTTPTimeout:       getEnvAsDuration("OPEN_METEO_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("OPEN_METEO_RPS", 5),
			Burst:             getEnvAsInt("OPEN_METEO_BURST", 5),
			MaxRetries:        getEnvAsInt("OPEN_METEO_MAX_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("OPEN_METEO_RETRY_DELAY", 500*time.Millisecond),
			BreakerTimeout:    getEnvAsDuration("OPEN_METEO_BREAKER_TIMEOUT", 30*time.Second),
		},
		Forecast: ForecastConfig{
			HistoryDays: getEnvAsInt("FORECAST_HISTORY_DAYS", domain.MaxHistoryDays),
			CacheTTL:    getEnvAsDuration("FORECAST_CACHE_TTL", time.Hour),
			Timeout:     getEnvAsDuration("FORECAST_TIMEOUT", 45*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error

	if c.Forecast.HistoryDays < 1 || c.Forecast.HistoryDays > domain.MaxHistoryDays {
		errs = append(errs, fmt.Errorf("FORECAST_HISTORY_DAYS must be between 1 and %d, got %d",
			domain.MaxHistoryDays, c.Forecast.HistoryDays))
	}

	if c.Forecast.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("FORECAST_CACHE_TTL must be positive, got %s", c.Forecast.CacheTTL))
	}

	if c.External.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("OPEN_METEO_RPS must not be negative, got %g", c.External.RequestsPerSecond))
	}

	if c.External.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("OPEN_METEO_MAX_RETRIES must not be negative, got %d", c.External.MaxRetries))
	}

	if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}

	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %g", c.Observability.SampleRate))
	}

	return errors.Join(errs...)
}

// getEnv retrieves an environment variable value with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set
//
// Returns:
//   - string: Environment value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - int: Parsed integer value or default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}

	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - bool: Parsed boolean value or default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	return defaultValue
}

// getEnvAsDuration parses values such as "90s" or "1h".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}

	return defaultValue
}
