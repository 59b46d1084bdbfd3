package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/middleware"
)

// ErrorResponse represents a standardized error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondWithJSON sends a JSON response with the specified status code.
//
// Parameters:
//   - w: HTTP response writer
//   - logger: Logger for encoding failures
//   - status: HTTP status code to return
//   - payload: Data to encode as JSON response body
func respondWithJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondWithError sends a standardized error response.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	respondWithJSON(w, logger, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// handleServiceError maps domain errors to HTTP responses.
//
// Error mappings:
//   - INVALID_COORDINATES, INVALID_HORIZON -> 400 Bad Request
//   - FORECAST_RETRIEVAL_ERROR, HISTORY_UNAVAILABLE -> 503 Service Unavailable
//   - Other errors -> 500 Internal Server Error
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var e *domain.WeatherError

	if errors.As(err, &e) {
		switch e.Code {
		case domain.CodeInvalidCoordinates, domain.CodeInvalidHorizon:
			respondWithError(w, logger, http.StatusBadRequest, e.Code, e.Message)
			return
		case domain.CodeForecastRetrievalError:
			respondWithError(w, logger, http.StatusServiceUnavailable, e.Code,
				"Weather service is temporarily unavailable")
			return
		case domain.CodeHistoryUnavailable:
			respondWithError(w, logger, http.StatusServiceUnavailable, e.Code,
				"Historical weather data is temporarily unavailable")
			return
		}
	}

	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	)

	respondWithError(w, logger, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}
