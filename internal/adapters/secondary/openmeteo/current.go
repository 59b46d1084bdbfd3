package openmeteo

import (
	"context"
	"fmt"
	"time"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

type currentResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
		Time        string  `json:"time"`
	} `json:"current_weather"`
}

// GetCurrentWeather retrieves the current conditions at coords.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - coords: Geographic coordinates
//
// Returns:
//   - *ports.WeatherData: Temperature in Celsius, wind and WMO code
//   - error: Transport error, non-2xx status or a response without current weather
func (c *Client) GetCurrentWeather(ctx context.Context, coords domain.Coordinates) (*ports.WeatherData, error) {
	q := coordinateQuery(coords.Latitude, coords.Longitude)
	q.Set("current_weather", "true")

	var payload currentResponse
	if err := c.getJSON(ctx, c.cfg.ForecastURL, q, &payload); err != nil {
		return nil, fmt.Errorf("fetch current weather: %w", err)
	}

	cw := payload.CurrentWeather
	if cw == nil {
		return nil, fmt.Errorf("open-meteo response has no current weather")
	}

	observed, err := time.ParseInLocation(hourTimeLayout, cw.Time, time.UTC)
	if err != nil {
		observed = c.now().UTC()
	}

	return &ports.WeatherData{
		Temperature:   cw.Temperature,
		Unit:          domain.Celsius,
		Forecast:      domain.DescribeWMO(cw.WeatherCode),
		ConditionCode: cw.WeatherCode,
		WindSpeedKmh:  cw.WindSpeed,
		ObservedAt:    observed,
	}, nil
}
