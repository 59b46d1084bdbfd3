package app

import (
	"context"
	"time"

	"github.com/sean-rowe/forecast-service/internal/core/ports"
	"github.com/sean-rowe/forecast-service/internal/infrastructure/database"
	"github.com/sean-rowe/forecast-service/internal/observability"
)

// DatabaseAdapter adapts PostgresDB to ports.DatabaseRepository and times
// each call.
type DatabaseAdapter struct {
	db        *database.PostgresDB
	telemetry *observability.Telemetry
}

var _ ports.DatabaseRepository = (*DatabaseAdapter)(nil)

// NewDatabaseAdapter creates a new database adapter. telemetry may be nil.
func NewDatabaseAdapter(db *database.PostgresDB, telemetry *observability.Telemetry) *DatabaseAdapter {
	return &DatabaseAdapter{db: db, telemetry: telemetry}
}

func (d *DatabaseAdapter) observe(ctx context.Context, op string, start time.Time, err error) {
	if d.telemetry != nil {
		d.telemetry.RecordDBQuery(ctx, op, time.Since(start), err)
	}
}

// LogAudit implements ports.DatabaseRepository.
func (d *DatabaseAdapter) LogAudit(ctx context.Context, log ports.AuditLog) error {
	start := time.Now()
	err := d.db.LogAudit(ctx, database.AuditLog{
		CorrelationID: log.CorrelationID,
		RequestID:     log.RequestID,
		Method:        log.Method,
		Path:          log.Path,
		StatusCode:    log.StatusCode,
		DurationMs:    log.DurationMs,
		UserAgent:     log.UserAgent,
		RemoteAddr:    log.RemoteAddr,
		ErrorMessage:  log.ErrorMessage,
		Metadata:      log.Metadata,
	})
	d.observe(ctx, "log_audit", start, err)

	return err
}

// LogForecastRequest implements ports.DatabaseRepository.
func (d *DatabaseAdapter) LogForecastRequest(ctx context.Context, req ports.ForecastRequest) error {
	start := time.Now()
	err := d.db.LogForecastRequest(ctx, database.ForecastRequest{
		RequestID:      req.RequestID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		HorizonDays:    req.HorizonDays,
		Mode:           req.Mode,
		HistoryHours:   req.HistoryHours,
		TrainingRows:   req.TrainingRows,
		ResponseTimeMs: req.ResponseTimeMs,
		CacheHit:       req.CacheHit,
	})
	d.observe(ctx, "log_forecast_request", start, err)

	return err
}

// GetRequestStats implements ports.DatabaseRepository.
func (d *DatabaseAdapter) GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	start := time.Now()
	stats, err := d.db.GetRequestStats(ctx, since)
	d.observe(ctx, "get_request_stats", start, err)

	return stats, err
}
