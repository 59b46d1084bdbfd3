// Package database persists the request audit trail and the forecast request
// log in PostgreSQL. The schema is owned by the embedded migrations.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PostgresDB is the Postgres-backed request log.
type PostgresDB struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds the connection settings.
type Config struct {
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

// DSN renders cfg as a lib/pq connection URL.
func (cfg Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}

	return u.String()
}

// NewPostgresDB opens a pool and checks it with a ping.
//
// Parameters:
//   - ctx: Context bounding the ping
//   - cfg: Connection settings
//   - logger: Zap logger
//
// Returns:
//   - *PostgresDB: Open database, closed with Close
//   - error: Open or ping failure
func NewPostgresDB(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{
		db:     db,
		logger: logger,
	}, nil
}

// DB exposes the pool for migrations.
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

// AuditLog is one row of audit_logs.
type AuditLog struct {
	CorrelationID string
	RequestID     string
	Method        string
	Path          string
	StatusCode    int
	DurationMs    int64
	UserAgent     string
	RemoteAddr    string
	ErrorMessage  *string
	Metadata      map[string]interface{}
}

// LogAudit records one HTTP request.
func (p *PostgresDB) LogAudit(ctx context.Context, log AuditLog) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "LogAudit")

	defer span.End()

	span.SetAttributes(
		attribute.String("correlation_id", log.CorrelationID),
		attribute.String("request_id", log.RequestID),
	)

	// lib/pq sends []byte as bytea, so JSONB goes over the wire as text
	var metadata sql.NullString

	if len(log.Metadata) > 0 {
		b, err := json.Marshal(log.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}

		metadata = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO audit_logs (
			correlation_id, request_id, method, path, status_code,
			duration_ms, user_agent, remote_addr, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	start := time.Now()
	_, err := p.db.ExecContext(ctx, query,
		log.CorrelationID,
		log.RequestID,
		log.Method,
		log.Path,
		log.StatusCode,
		log.DurationMs,
		log.UserAgent,
		log.RemoteAddr,
		log.ErrorMessage,
		metadata,
	)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("failed to log audit",
			zap.Error(err),
			zap.String("correlation_id", log.CorrelationID),
			zap.Duration("duration", duration))
		span.RecordError(err)

		return err
	}

	p.logger.Debug("audit logged",
		zap.String("correlation_id", log.CorrelationID),
		zap.Duration("duration", duration))

	return nil
}

// ForecastRequest is one row of forecast_requests.
type ForecastRequest struct {
	RequestID      string
	Latitude       float64
	Longitude      float64
	HorizonDays    int
	Mode           string
	HistoryHours   int
	TrainingRows   int
	ResponseTimeMs int
	CacheHit       bool
}

// LogForecastRequest records one served forecast. A repeated request ID is
// ignored.
func (p *PostgresDB) LogForecastRequest(ctx context.Context, req ForecastRequest) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "LogForecastRequest")

	defer span.End()

	span.SetAttributes(
		attribute.String("request_id", req.RequestID),
		attribute.Float64("latitude", req.Latitude),
		attribute.Float64("longitude", req.Longitude),
		attribute.String("forecast.mode", req.Mode),
	)

	query := `
		INSERT INTO forecast_requests (
			request_id, latitude, longitude, horizon_days, mode,
			history_hours, training_rows, response_time_ms, cache_hit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO NOTHING
	`

	start := time.Now()
	_, err := p.db.ExecContext(ctx, query,
		req.RequestID,
		req.Latitude,
		req.Longitude,
		req.HorizonDays,
		req.Mode,
		req.HistoryHours,
		req.TrainingRows,
		req.ResponseTimeMs,
		req.CacheHit,
	)

	if err != nil {
		p.logger.Error("failed to log forecast request",
			zap.Error(err),
			zap.String("request_id", req.RequestID),
			zap.Duration("duration", time.Since(start)))
		span.RecordError(err)

		return err
	}

	return nil
}

const statsQuery = `
	SELECT
		COUNT(*),
		AVG(response_time_ms),
		MIN(response_time_ms),
		MAX(response_time_ms),
		COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END)::float / NULLIF(COUNT(*), 0), 0),
		COALESCE(SUM(CASE WHEN mode = 'degraded' THEN 1 ELSE 0 END), 0),
		AVG(training_rows) FILTER (WHERE mode = 'model')
	FROM forecast_requests
	WHERE requested_at >= $1
`

// GetRequestStats aggregates forecast_requests since the given time.
func (p *PostgresDB) GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "GetRequestStats")

	defer span.End()

	var stats struct {
		TotalRequests    int
		AvgResponseTime  sql.NullFloat64
		MinResponseTime  sql.NullInt64
		MaxResponseTime  sql.NullInt64
		CacheHitRate     float64
		DegradedRequests int
		AvgTrainingRows  sql.NullFloat64
	}

	err := p.db.QueryRowContext(ctx, statsQuery, since).Scan(
		&stats.TotalRequests,
		&stats.AvgResponseTime,
		&stats.MinResponseTime,
		&stats.MaxResponseTime,
		&stats.CacheHitRate,
		&stats.DegradedRequests,
		&stats.AvgTrainingRows,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query request stats: %w", err)
	}

	return map[string]interface{}{
		"total_requests":    stats.TotalRequests,
		"avg_response_time": stats.AvgResponseTime.Float64,
		"min_response_time": stats.MinResponseTime.Int64,
		"max_response_time": stats.MaxResponseTime.Int64,
		"cache_hit_rate":    stats.CacheHitRate,
		"degraded_requests": stats.DegradedRequests,
		"avg_training_rows": stats.AvgTrainingRows.Float64,
	}, nil
}

// Close closes the pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping checks the connection.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
