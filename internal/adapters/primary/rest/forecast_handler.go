package rest

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

var validate = validator.New()

// ForecastHandler serves daily forecasts.
type ForecastHandler struct {
	service ports.ForecastService
	logger  *zap.Logger
}

// NewForecastHandler creates a new HTTP handler for forecast operations.
func NewForecastHandler(service ports.ForecastService, logger *zap.Logger) *ForecastHandler {
	return &ForecastHandler{
		service: service,
		logger:  logger,
	}
}

type forecastQuery struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
	Days      int     `validate:"gte=1,lte=16"`
	Unit      string  `validate:"oneof=C F"`
}

// ForecastResponse is the JSON body of the forecast endpoint.
type ForecastResponse struct {
	Latitude     float64              `json:"latitude"`
	Longitude    float64              `json:"longitude"`
	Mode         string               `json:"mode"`
	Unit         string               `json:"unit"`
	HistoryHours int                  `json:"historyHours"`
	TrainingRows int                  `json:"trainingRows"`
	Cached       bool                 `json:"cached"`
	GeneratedAt  time.Time            `json:"generatedAt"`
	Days         []DailyForecastEntry `json:"days"`
}

// DailyForecastEntry is one day of a ForecastResponse.
type DailyForecastEntry struct {
	Date          string  `json:"date"`
	Temperature   float64 `json:"temperature"`
	ConditionCode int     `json:"conditionCode"`
	Condition     string  `json:"condition"`
	CloudCover    float64 `json:"cloudCover"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"windSpeed"`
	Degraded      bool    `json:"degraded"`
}

// GetForecast handles GET /api/v1/forecast?lat=&lon=&days=&unit=.
//
// Response codes:
//   - 200: Success with ForecastResponse JSON, also when the forecast is degraded
//   - 400: MISSING_PARAMETERS, INVALID_LATITUDE, INVALID_LONGITUDE,
//     INVALID_DAYS, INVALID_COORDINATES, INVALID_HORIZON, INVALID_UNIT
//   - 503: HISTORY_UNAVAILABLE
//   - 500: Internal server error
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	coords, ok := parseCoordinates(w, r, h.logger)
	if !ok {
		return
	}

	q := forecastQuery{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Days:      domain.DefaultHorizonDays,
		Unit:      string(domain.Celsius),
	}

	if s := r.URL.Query().Get("days"); s != "" {
		days, err := strconv.Atoi(s)
		if err != nil {
			respondWithError(w, h.logger, http.StatusBadRequest, "INVALID_DAYS", "Invalid days format")
			return
		}

		q.Days = days
	}

	if s := r.URL.Query().Get("unit"); s != "" {
		q.Unit = strings.ToUpper(s)
	}

	if err := validate.Struct(q); err != nil {
		code, message := validationFailure(err)
		respondWithError(w, h.logger, http.StatusBadRequest, code, message)

		return
	}

	fc, err := h.service.Forecast(r.Context(), coords, q.Days)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, newForecastResponse(fc, domain.TemperatureUnit(q.Unit)))
}

func validationFailure(err error) (code, message string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "INVALID_PARAMETERS", err.Error()
	}

	switch f := verrs[0]; f.Field() {
	case "Latitude", "Longitude":
		return domain.CodeInvalidCoordinates, "The provided coordinates are invalid"
	case "Days":
		return domain.CodeInvalidHorizon, fmt.Sprintf("days must be between 1 and %d", domain.MaxHorizonDays)
	case "Unit":
		return "INVALID_UNIT", "unit must be C or F"
	default:
		return "INVALID_PARAMETERS", f.Error()
	}
}

func newForecastResponse(fc *domain.Forecast, unit domain.TemperatureUnit) ForecastResponse {
	resp := ForecastResponse{
		Latitude:     fc.Coordinates.Latitude,
		Longitude:    fc.Coordinates.Longitude,
		Mode:         string(fc.Mode),
		Unit:         string(unit),
		HistoryHours: fc.HistoryHours,
		TrainingRows: fc.TrainingRows,
		Cached:       fc.Cached,
		GeneratedAt:  fc.GeneratedAt,
		Days:         make([]DailyForecastEntry, 0, len(fc.Days)),
	}

	for _, d := range fc.Days {
		temp := d.TemperatureC
		if unit == domain.Fahrenheit {
			temp = domain.CelsiusToFahrenheit(temp)
		}

		resp.Days = append(resp.Days, DailyForecastEntry{
			Date:          d.Date.Format("2006-01-02"),
			Temperature:   round1(temp),
			ConditionCode: d.ConditionCode,
			Condition:     d.ConditionDescription,
			CloudCover:    round1(d.CloudCoverPct),
			Precipitation: round1(d.PrecipitationMm),
			WindSpeed:     round1(d.WindSpeedKmh),
			Degraded:      d.Degraded,
		})
	}

	return resp
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
