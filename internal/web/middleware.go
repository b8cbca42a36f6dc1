package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/doc-capture/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// requestID reuses the caller's X-Request-ID or generates one, echoes it
// and stores it in the request context for logging
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// accessLog logs each request at a level chosen by its status
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		attrs := []any{
			"status", rec.status,
			"method", r.Method,
			"path", r.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", logger.RequestID(r.Context()),
		}

		switch {
		case rec.status >= 500:
			slog.Error("request completed", attrs...)
		case rec.status >= 400:
			slog.Warn("request completed", attrs...)
		default:
			slog.Debug("request completed", attrs...)
		}
	})
}
