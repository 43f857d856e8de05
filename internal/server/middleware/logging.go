package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id back to the caller
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id the logging middleware assigned to the request
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging returns middleware that logs requests
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // default
			}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))

			duration := time.Since(start)
			logger.Info("Request completed",
				"request_id", requestID,
				"method", r.Method,
				"endpoint", r.URL.Path,
				"status_code", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
