//go:build integration

package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *PostgresDB {
	t.Helper()

	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}

	port, _ := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}

	db, err := NewPostgresDB(context.Background(), Config{
		Host:           host,
		Port:           port,
		User:           os.Getenv("TEST_DB_USER"),
		Password:       os.Getenv("TEST_DB_PASSWORD"),
		Database:       os.Getenv("TEST_DB_NAME"),
		SSLMode:        "disable",
		MaxConnections: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.DB(), zap.NewNop()))

	return db
}

func TestPostgresDB_ForecastRequestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	since := time.Now().Add(-time.Second)

	requests := []ForecastRequest{
		{RequestID: uuid.NewString(), Latitude: 51.5, Longitude: -0.12, HorizonDays: 5, Mode: "model", HistoryHours: 8760, TrainingRows: 8735, ResponseTimeMs: 120},
		{RequestID: uuid.NewString(), Latitude: 51.5, Longitude: -0.12, HorizonDays: 5, Mode: "model", HistoryHours: 8760, TrainingRows: 8735, ResponseTimeMs: 2, CacheHit: true},
		{RequestID: uuid.NewString(), Latitude: -89.9, Longitude: 0, HorizonDays: 3, Mode: "degraded", ResponseTimeMs: 40},
	}

	for _, r := range requests {
		require.NoError(t, db.LogForecastRequest(ctx, r))
	}

	// duplicate request IDs are ignored
	require.NoError(t, db.LogForecastRequest(ctx, requests[0]))

	stats, err := db.GetRequestStats(ctx, since)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stats["total_requests"], 3)
	assert.GreaterOrEqual(t, stats["degraded_requests"], 1)
}

func TestPostgresDB_LogAudit(t *testing.T) {
	db := openTestDB(t)

	msg := "history unavailable"
	err := db.LogAudit(context.Background(), AuditLog{
		CorrelationID: uuid.NewString(),
		RequestID:     uuid.NewString(),
		Method:        "GET",
		Path:          "/api/v1/forecast",
		StatusCode:    503,
		DurationMs:    17,
		UserAgent:     "integration-test",
		RemoteAddr:    "127.0.0.1",
		ErrorMessage:  &msg,
		Metadata:      map[string]interface{}{"days": 5},
	})
	assert.NoError(t, err)
}
