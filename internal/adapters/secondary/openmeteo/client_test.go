package openmeteo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/domain"
)

var berlin = domain.Coordinates{Latitude: 52.52, Longitude: 13.405}

const archiveBody = `{
  "latitude": 52.52,
  "longitude": 13.41,
  "timezone": "GMT",
  "utc_offset_seconds": 0,
  "hourly": {
    "time": ["2024-06-08T00:00", "2024-06-08T01:00", "2024-06-08T02:00", "2024-06-08T03:00"],
    "temperature_2m": [14.2, 13.8, null, 13.1],
    "relative_humidity_2m": [81, 83, 85, 86],
    "precipitation": [0.0, 0.2, 0.0, 0.0],
    "pressure_msl": [1012.4, 1012.1, 1011.9, 1011.7],
    "wind_speed_10m": [7.2, 6.8, 6.1, 5.9],
    "cloud_cover": [40, 65, 90, 100],
    "weather_code": [1, 51, 3, null]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{
		ArchiveURL:  server.URL + "/v1/archive",
		ForecastURL: server.URL + "/v1/forecast",
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}

	c := NewClient(cfg, server.Client(), zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC) }

	return c
}

func TestFetchHistoricalObservations(t *testing.T) {
	var query map[string]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/archive", r.URL.Path)

		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(archiveBody))
	})

	obs, err := c.FetchHistoricalObservations(context.Background(), berlin, 30)
	require.NoError(t, err)

	assert.Equal(t, "52.5200", query["latitude"])
	assert.Equal(t, "13.4050", query["longitude"])
	assert.Equal(t, "2024-06-09", query["end_date"])
	assert.Equal(t, "2024-05-11", query["start_date"])
	assert.Equal(t, "auto", query["timezone"])
	assert.Contains(t, query["hourly"], "weather_code")

	// the 02:00 hour has no temperature and is dropped
	require.Len(t, obs, 3)

	assert.Equal(t, 14.2, obs[0].TemperatureC)
	assert.Equal(t, 81.0, obs[0].HumidityPct)
	assert.Equal(t, 1012.4, obs[0].PressureHPa)
	assert.Equal(t, domain.WMOMainlyClear, obs[0].WeatherCode)
	assert.Equal(t, berlin, obs[0].Coordinates)
	assert.True(t, obs[0].Time.Equal(time.Date(2024, time.June, 8, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, 0.2, obs[1].PrecipitationMm)
	assert.Equal(t, 51, obs[1].WeatherCode)

	assert.Equal(t, 3, obs[2].Time.Hour())
	assert.Equal(t, -1, obs[2].WeatherCode, "missing weather code is kept as -1")
}

func TestFetchHistoricalObservations_LocalTimezone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
		  "timezone": "Not/AZone",
		  "utc_offset_seconds": 19800,
		  "hourly": {
		    "time": ["2024-06-08T05:00"],
		    "temperature_2m": [31.0],
		    "relative_humidity_2m": [60],
		    "precipitation": [0],
		    "pressure_msl": [1004],
		    "wind_speed_10m": [9],
		    "cloud_cover": [20],
		    "weather_code": [0]
		  }
		}`))
	})

	obs, err := c.FetchHistoricalObservations(context.Background(), berlin, 1)
	require.NoError(t, err)
	require.Len(t, obs, 1)

	_, offset := obs[0].Time.Zone()
	assert.Equal(t, 19800, offset)
	assert.True(t, obs[0].Time.Equal(time.Date(2024, time.June, 7, 23, 30, 0, 0, time.UTC)))
}

func TestFetchHistoricalObservations_ZeroDays(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	})

	obs, err := c.FetchHistoricalObservations(context.Background(), berlin, 0)
	require.NoError(t, err)
	assert.Empty(t, obs)
	assert.Zero(t, calls.Load())
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(archiveBody))
	})

	obs, err := c.FetchHistoricalObservations(context.Background(), berlin, 7)
	require.NoError(t, err)
	assert.Len(t, obs, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchHistoricalObservations(context.Background(), berlin, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRateLimited))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": true, "reason": "Latitude must be in range of -90 to 90°."}`))
	})

	_, err := c.FetchHistoricalObservations(context.Background(), berlin, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnexpected)
	assert.Contains(t, err.Error(), "Latitude must be in range")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetCurrentWeather(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		status      int
		expectError bool
		expected    float64
		code        int
	}{
		{
			name:     "current conditions",
			body:     `{"current_weather": {"temperature": 21.4, "windspeed": 11.2, "weathercode": 2, "time": "2024-06-10T08:00"}}`,
			status:   http.StatusOK,
			expected: 21.4,
			code:     domain.WMOPartlyCloudy,
		},
		{
			name:        "missing current weather",
			body:        `{"latitude": 52.52}`,
			status:      http.StatusOK,
			expectError: true,
		},
		{
			name:        "not found",
			body:        `{}`,
			status:      http.StatusNotFound,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/forecast", r.URL.Path)
				assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			data, err := c.GetCurrentWeather(context.Background(), berlin)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, data)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, data.Temperature)
			assert.Equal(t, domain.Celsius, data.Unit)
			assert.Equal(t, tt.code, data.ConditionCode)
			assert.Equal(t, domain.DescribeWMO(tt.code), data.Forecast)
			assert.Equal(t, 11.2, data.WindSpeedKmh)
			assert.Equal(t, 8, data.ObservedAt.Hour())
		})
	}
}

func TestGetJSON_RespectsCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.cfg.Backoff.InitialInterval = time.Hour
	c.cfg.Backoff.MaxInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetCurrentWeather(ctx, berlin)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
