package openmeteo

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

const (
	dateLayout     = "2006-01-02"
	hourTimeLayout = "2006-01-02T15:04"

	hourlyVariables = "temperature_2m,relative_humidity_2m,precipitation,pressure_msl," +
		"wind_speed_10m,cloud_cover,weather_code"
)

type archiveResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Hourly           struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		Precipitation []*float64 `json:"precipitation"`
		Pressure      []*float64 `json:"pressure_msl"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		CloudCover    []*float64 `json:"cloud_cover"`
		WeatherCode   []*float64 `json:"weather_code"`
	} `json:"hourly"`
}

// FetchHistoricalObservations returns hourly observations for the daysBack
// days ending yesterday, in the location's local time. Hours with a missing
// value are dropped; a missing weather code is kept as -1.
func (c *Client) FetchHistoricalObservations(ctx context.Context, coords domain.Coordinates, daysBack int) ([]domain.Observation, error) {
	ctx, span := otel.Tracer("openmeteo").Start(ctx, "OpenMeteo.FetchHistoricalObservations")
	defer span.End()

	if daysBack < 1 {
		return nil, nil
	}

	if daysBack > domain.MaxHistoryDays {
		daysBack = domain.MaxHistoryDays
	}

	end := c.now().UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(daysBack - 1))

	span.SetAttributes(
		attribute.String("start_date", start.Format(dateLayout)),
		attribute.String("end_date", end.Format(dateLayout)),
	)

	q := coordinateQuery(coords.Latitude, coords.Longitude)
	q.Set("start_date", start.Format(dateLayout))
	q.Set("end_date", end.Format(dateLayout))
	q.Set("hourly", hourlyVariables)
	q.Set("timezone", "auto")

	var payload archiveResponse
	if err := c.getJSON(ctx, c.cfg.ArchiveURL, q, &payload); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch archive: %w", err)
	}

	obs, dropped := payload.observations(coords)

	span.SetAttributes(
		attribute.Int("observations", len(obs)),
		attribute.Int("dropped", dropped),
	)

	c.logger.Debug("historical observations fetched",
		zap.String("coordinates", coords.Key()),
		zap.Int("days_back", daysBack),
		zap.Int("observations", len(obs)),
		zap.Int("dropped", dropped))

	return obs, nil
}

func (r *archiveResponse) location() *time.Location {
	if r.Timezone != "" {
		if loc, err := time.LoadLocation(r.Timezone); err == nil {
			return loc
		}
	}

	return time.FixedZone(r.Timezone, r.UTCOffsetSeconds)
}

func (r *archiveResponse) observations(coords domain.Coordinates) (obs []domain.Observation, dropped int) {
	h := r.Hourly
	loc := r.location()
	obs = make([]domain.Observation, 0, len(h.Time))

	for i, ts := range h.Time {
		t, err := time.ParseInLocation(hourTimeLayout, ts, loc)
		if err != nil {
			dropped++
			continue
		}

		temp, ok1 := at(h.Temperature, i)
		hum, ok2 := at(h.Humidity, i)
		precip, ok3 := at(h.Precipitation, i)
		press, ok4 := at(h.Pressure, i)
		wind, ok5 := at(h.WindSpeed, i)
		cloud, ok6 := at(h.CloudCover, i)

		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
			dropped++
			continue
		}

		code := -1
		if v, ok := at(h.WeatherCode, i); ok {
			code = int(v)
		}

		obs = append(obs, domain.Observation{
			Time:            t,
			Coordinates:     coords,
			TemperatureC:    temp,
			HumidityPct:     hum,
			PressureHPa:     press,
			WindSpeedKmh:    wind,
			PrecipitationMm: precip,
			CloudCoverPct:   cloud,
			WeatherCode:     code,
		})
	}

	return obs, dropped
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}

	return *values[i], true
}
