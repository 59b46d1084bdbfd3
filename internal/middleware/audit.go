package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/forecast-service/internal/core/ports"
)

// auditTimeout bounds the write of one audit row.
const auditTimeout = 2 * time.Second

// AuditMiddleware writes one audit_logs row per request. Writes happen after
// the response and never change it.
type AuditMiddleware struct {
	repo   ports.DatabaseRepository
	logger *zap.Logger
}

// NewAuditMiddleware creates an audit middleware on repo.
func NewAuditMiddleware(repo ports.DatabaseRepository, logger *zap.Logger) *AuditMiddleware {
	return &AuditMiddleware{repo: repo, logger: logger}
}

// Middleware wraps next with audit logging.
func (m *AuditMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		entry := ports.AuditLog{
			CorrelationID: GetCorrelationID(r.Context()),
			RequestID:     GetRequestID(r.Context()),
			Method:        r.Method,
			Path:          r.URL.Path,
			StatusCode:    wrapped.statusCode,
			DurationMs:    time.Since(start).Milliseconds(),
			UserAgent:     r.UserAgent(),
			RemoteAddr:    GetClientIP(r),
		}

		if r.URL.RawQuery != "" {
			entry.Metadata = map[string]interface{}{"query": r.URL.RawQuery}
		}

		if wrapped.statusCode >= 400 {
			msg := http.StatusText(wrapped.statusCode)
			entry.ErrorMessage = &msg
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
		defer cancel()

		if err := m.repo.LogAudit(ctx, entry); err != nil {
			m.logger.Warn("failed to write audit log",
				zap.String("request_id", entry.RequestID),
				zap.Error(err))
		}
	})
}
