//go:build integration

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/config"
)

// IntegrationTestSuite runs the full router against Postgres and a fake
// Open-Meteo upstream. Redis is used when TEST_REDIS_ADDR is set.
type IntegrationTestSuite struct {
	suite.Suite
	app      *App
	server   *httptest.Server
	upstream *httptest.Server
}

func TestIntegrationSuite(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set")
	}

	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/archive":
			_, _ = w.Write([]byte(`{"timezone":"GMT","utc_offset_seconds":0,"hourly":{"time":[]}}`))
		case "/v1/forecast":
			_, _ = w.Write([]byte(`{"current_weather":{"temperature":23.9,"windspeed":7.4,"weathercode":0,"time":"2024-06-10T09:00"}}`))
		default:
			http.NotFound(w, r)
		}
	}))

	cfg := config.Load()
	cfg.Observability.OTLPEndpoint = ""
	cfg.External.ArchiveURL = s.upstream.URL + "/v1/archive"
	cfg.External.ForecastURL = s.upstream.URL + "/v1/forecast"
	cfg.External.MaxRetries = 0
	cfg.External.RequestsPerSecond = 0
	cfg.RateLimit.Requests = 1000

	cfg.Database.Enabled = true
	cfg.Database.RunMigrations = true
	cfg.Database.Host = os.Getenv("TEST_DB_HOST")
	cfg.Database.User = envOr("TEST_DB_USER", "test")
	cfg.Database.Password = envOr("TEST_DB_PASSWORD", "test")
	cfg.Database.Database = envOr("TEST_DB_NAME", "forecast_test")
	cfg.Database.SSLMode = "disable"

	if port, err := strconv.Atoi(os.Getenv("TEST_DB_PORT")); err == nil {
		cfg.Database.Port = port
	}

	cfg.Redis.Enabled = os.Getenv("TEST_REDIS_ADDR") != ""
	cfg.Redis.Addr = os.Getenv("TEST_REDIS_ADDR")
	cfg.Redis.KeyPrefix = "forecast-service-test:"

	s.app = NewWithConfig(cfg, zap.NewNop())

	handler, err := s.app.Handler(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(s.app.db, "database did not connect")

	s.server = httptest.NewServer(handler)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}

	if s.upstream != nil {
		s.upstream.Close()
	}

	if s.app != nil {
		s.app.Stop()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func (s *IntegrationTestSuite) getJSON(path string, out interface{}) *http.Response {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}

	return resp
}

func (s *IntegrationTestSuite) TestHealthEndpoint() {
	var body map[string]interface{}

	resp := s.getJSON("/health", &body)

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body["checks"], "database")
}

func (s *IntegrationTestSuite) TestWeatherEndpoint() {
	testCases := []struct {
		name           string
		query          string
		expectedStatus int
	}{
		{name: "valid coordinates", query: "?lat=40.7128&lon=-74.0060", expectedStatus: http.StatusOK},
		{name: "missing latitude", query: "?lon=-74.0060", expectedStatus: http.StatusBadRequest},
		{name: "invalid latitude", query: "?lat=91&lon=0", expectedStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			var body map[string]interface{}

			resp := s.getJSON("/api/v1/weather"+tc.query, &body)

			s.Equal(tc.expectedStatus, resp.StatusCode)
			s.NotEmpty(resp.Header.Get("X-Correlation-ID"))
			s.NotEmpty(resp.Header.Get("X-Request-ID"))

			if tc.expectedStatus != http.StatusOK {
				s.NotEmpty(body["error"])
				s.NotEmpty(body["message"])
			}
		})
	}
}

func (s *IntegrationTestSuite) TestForecastsAreRecorded() {
	for i := 0; i < 3; i++ {
		var body map[string]interface{}

		resp := s.getJSON(fmt.Sprintf("/api/v1/forecast?lat=%d.5&lon=10&days=2", i), &body)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.Equal("degraded", body["mode"])
	}

	var stats map[string]interface{}

	resp := s.getJSON("/stats?window=1h", &stats)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	total, _ := stats["total_requests"].(float64)
	degraded, _ := stats["degraded_requests"].(float64)

	s.GreaterOrEqual(total, 3.0)
	s.GreaterOrEqual(degraded, 3.0)
}

func (s *IntegrationTestSuite) TestConcurrentForecasts() {
	const numRequests = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			resp, err := http.Get(s.server.URL + "/api/v1/forecast?lat=52.52&lon=13.405&days=4")
			if err != nil {
				return
			}
			resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	s.Equal(numRequests, success)
}
