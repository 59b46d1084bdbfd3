package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) LogAudit(ctx context.Context, log ports.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *mockRepository) LogForecastRequest(ctx context.Context, req ports.ForecastRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRepository) GetRequestStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	args := m.Called(ctx, since)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func TestStatsHandler_GetStats(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	t.Run("default window", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetRequestStats", mock.Anything, now.Add(-24*time.Hour)).
			Return(map[string]interface{}{"total_requests": 12, "degraded_requests": 2}, nil)

		h := NewStatsHandler(repo, zap.NewNop())
		h.now = func() time.Time { return now }

		rr := httptest.NewRecorder()
		h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

		require.Equal(t, http.StatusOK, rr.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, 12.0, body["total_requests"])
		assert.Equal(t, "24h0m0s", body["window"])
		repo.AssertExpectations(t)
	})

	t.Run("custom window", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetRequestStats", mock.Anything, now.Add(-time.Hour)).
			Return(map[string]interface{}{}, nil)

		h := NewStatsHandler(repo, zap.NewNop())
		h.now = func() time.Time { return now }

		rr := httptest.NewRecorder()
		h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/stats?window=1h", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		repo.AssertExpectations(t)
	})

	t.Run("invalid window", func(t *testing.T) {
		h := NewStatsHandler(new(mockRepository), zap.NewNop())

		rr := httptest.NewRecorder()
		h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/stats?window=-5m", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("no database", func(t *testing.T) {
		h := NewStatsHandler(nil, zap.NewNop())

		rr := httptest.NewRecorder()
		h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("query failure", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetRequestStats", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		h := NewStatsHandler(repo, zap.NewNop())

		rr := httptest.NewRecorder()
		h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
