package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// RateLimitMiddleware rejects clients that exceed a request budget per window.
// The budget is enforced by a RateLimitService so that it can be shared
// across instances through Redis.
type RateLimitMiddleware struct {
	limiter ports.RateLimitService
	limit   int
	window  time.Duration
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a rate-limiting middleware.
//
// Parameters:
//   - limiter: Backing rate limit store (Redis or memory)
//   - limit: Requests allowed per client and window
//   - window: Length of the sliding window
//   - logger: Zap logger
//
// Returns:
//   - *RateLimitMiddleware: Middleware instance
func NewRateLimitMiddleware(limiter ports.RateLimitService, limit int, window time.Duration, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

// Middleware wraps next with the rate limit check. A limiter failure lets the
// request through.
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := rateLimitKey(r)

		allowed, err := m.limiter.Allow(r.Context(), client, m.limit, m.window)
		if err != nil {
			m.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("client", client),
				zap.Error(err))

			next.ServeHTTP(w, r)

			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(m.window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests, please retry later",
			})

			return
		}

		next.ServeHTTP(w, r)
	})
}
