package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	headerRequestID    = "X-Request-ID"
	maxRequestIDLength = 128
)

const (
	contextKeyRequestID contextKey = "escrow.request_id"
	contextKeyLogger    contextKey = "escrow.logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogging assigns a request ID, echoes it back and writes one access
// log line per request.
func requestLogging(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(headerRequestID))
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			w.Header().Set(headerRequestID, id)
			log := base.With("request_id", id)
			ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
			ctx = context.WithValue(ctx, contextKeyLogger, log)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

func logger(r *http.Request) *slog.Logger {
	if log, ok := r.Context().Value(contextKeyLogger).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}
