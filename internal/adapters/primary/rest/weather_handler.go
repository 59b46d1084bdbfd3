// Package rest implements the HTTP handlers of the forecast service.
// This package serves as the primary adapter, translating HTTP requests
// into domain operations and formatting responses for clients.
package rest

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// WeatherHandler handles HTTP requests for current conditions.
type WeatherHandler struct {
	// service provides access to current-weather operations
	service ports.WeatherService

	// logger records request processing events and errors
	logger *zap.Logger
}

// NewWeatherHandler creates a new HTTP handler for current-weather operations.
//
// Parameters:
//   - service: WeatherService interface for business logic operations
//   - logger: Zap logger for request logging and error tracking
//
// Returns:
//   - *WeatherHandler: Configured handler instance
func NewWeatherHandler(service ports.WeatherService, logger *zap.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		logger:  logger,
	}
}

// WeatherResponse represents the JSON structure returned by the current-weather endpoint.
type WeatherResponse struct {
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	Forecast        string     `json:"forecast"`
	ConditionCode   int        `json:"conditionCode"`
	Temperature     float64    `json:"temperature"`
	TemperatureUnit string     `json:"temperatureUnit"`
	WindSpeed       float64    `json:"windSpeed"`
	Category        string     `json:"category"`
	ObservedAt      *time.Time `json:"observedAt,omitempty"`
}

// GetWeather handles GET requests for current weather.
//
// Response codes:
//   - 200: Success with WeatherResponse JSON
//   - 400: Invalid parameters (MISSING_PARAMETERS, INVALID_LATITUDE, INVALID_LONGITUDE, INVALID_COORDINATES)
//   - 503: Provider unavailable (FORECAST_RETRIEVAL_ERROR)
//   - 500: Internal server error
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	coords, ok := parseCoordinates(w, r, h.logger)
	if !ok {
		return
	}

	weather, err := h.service.GetWeather(r.Context(), coords)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	response := WeatherResponse{
		Latitude:        weather.Coordinates.Latitude,
		Longitude:       weather.Coordinates.Longitude,
		Forecast:        weather.Forecast,
		ConditionCode:   weather.ConditionCode,
		Temperature:     weather.Temperature.Value,
		TemperatureUnit: string(weather.Temperature.Unit),
		WindSpeed:       weather.WindSpeedKmh,
		Category:        string(weather.Category),
	}

	if !weather.ObservedAt.IsZero() {
		observed := weather.ObservedAt
		response.ObservedAt = &observed
	}

	respondWithJSON(w, h.logger, http.StatusOK, response)
}

// parseCoordinates reads the lat and lon query parameters, writing a 400
// response and returning false when they are absent or malformed.
func parseCoordinates(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Coordinates, bool) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")

	if latStr == "" || lonStr == "" {
		respondWithError(w, logger, http.StatusBadRequest, "MISSING_PARAMETERS",
			"Both 'lat' and 'lon' query parameters are required")

		return domain.Coordinates{}, false
	}

	latitude, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		respondWithError(w, logger, http.StatusBadRequest, "INVALID_LATITUDE", "Invalid latitude format")
		return domain.Coordinates{}, false
	}

	longitude, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		respondWithError(w, logger, http.StatusBadRequest, "INVALID_LONGITUDE", "Invalid longitude format")
		return domain.Coordinates{}, false
	}

	return domain.Coordinates{Latitude: latitude, Longitude: longitude}, true
}
