// Package openmeteo implements the historical data source and the
// current-weather client on top of the Open-Meteo HTTP APIs. It is a
// secondary adapter: it translates domain requests into API calls and the
// JSON responses back into domain observations.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default endpoints.
const (
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
)

var (
	errRateLimited = errors.New("open-meteo rate limited")
	errServerError = errors.New("open-meteo server error")
	errUnexpected  = errors.New("open-meteo unexpected status code")
)

// BackoffConfig controls retries of failed calls.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Config configures a Client.
type Config struct {
	ArchiveURL  string
	ForecastURL string

	// RequestsPerSecond caps outbound calls; zero disables the limiter.
	RequestsPerSecond float64
	Burst             int

	Backoff BackoffConfig
}

// DefaultConfig returns the public endpoints with a conservative outbound
// rate and three retries.
func DefaultConfig() Config {
	return Config{
		ArchiveURL:        DefaultArchiveURL,
		ForecastURL:       DefaultForecastURL,
		RequestsPerSecond: 5,
		Burst:             5,
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

// Client talks to the Open-Meteo archive and forecast APIs.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a new Open-Meteo client.
//
// Parameters:
//   - cfg: Endpoints, outbound rate and retry policy
//   - httpClient: HTTP client with timeout configuration
//   - logger: Zap logger for API interaction logging
//
// Returns:
//   - *Client: Configured Open-Meteo client
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}
}

// getJSON issues a GET to base?query and decodes the body into out, retrying
// rate-limit, server and transport errors with exponential backoff.
func (c *Client) getJSON(ctx context.Context, base string, query url.Values, out interface{}) error {
	u := base + "?" + query.Encode()

	var attempt int

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait canceled: %w", err)
		}

		err := c.doOnce(ctx, u, out)
		if err == nil {
			return nil
		}

		if !retryable(err) || attempt >= c.cfg.Backoff.MaxRetries {
			return err
		}

		delay := c.backoff(attempt)
		c.logger.Debug("retrying open-meteo request",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

func (c *Client) doOnce(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", "ForecastService/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %d: %s", errUnexpected, resp.StatusCode, apiReason(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode open-meteo response: %w", err)
	}

	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
	if c.cfg.Backoff.MaxInterval > 0 && delay > c.cfg.Backoff.MaxInterval {
		delay = c.cfg.Backoff.MaxInterval
	}

	return delay
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return !errors.Is(err, errUnexpected)
}

// apiReason extracts the "reason" field of an Open-Meteo error body.
func apiReason(body io.Reader) string {
	var payload struct {
		Reason string `json:"reason"`
	}

	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil || payload.Reason == "" {
		return "no reason given"
	}

	return payload.Reason
}

func coordinateQuery(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))

	return q
}
