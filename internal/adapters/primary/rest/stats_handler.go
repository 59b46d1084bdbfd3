package rest

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// defaultStatsWindow is the period /stats aggregates when no window is given.
const defaultStatsWindow = 24 * time.Hour

// StatsHandler exposes aggregates of the persisted request log.
type StatsHandler struct {
	repo   ports.DatabaseRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewStatsHandler creates a stats handler. repo may be nil when no database
// is configured, in which case the endpoint answers 503.
func NewStatsHandler(repo ports.DatabaseRepository, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// GetStats handles GET /stats?window=24h.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, "STATS_UNAVAILABLE",
			"Request statistics require a database")

		return
	}

	window := defaultStatsWindow

	if s := r.URL.Query().Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			respondWithError(w, h.logger, http.StatusBadRequest, "INVALID_WINDOW", "window must be a positive duration such as 24h")
			return
		}

		window = d
	}

	stats, err := h.repo.GetRequestStats(r.Context(), h.now().Add(-window))
	if err != nil {
		h.logger.Error("failed to load request stats", zap.Error(err))
		respondWithError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")

		return
	}

	stats["window"] = window.String()

	respondWithJSON(w, h.logger, http.StatusOK, stats)
}
