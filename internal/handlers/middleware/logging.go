// internal/handlers/middleware/logging.go
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
)

const slowRequestThreshold = 5 * time.Second

// statusRecorder captures the status and size written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
		s.ResponseWriter.WriteHeader(code)
	}
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Logger tags the request context with trace and client details and logs one
// line per completed request. 5xx log at error; 4xx and slow requests at warn.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get(HeaderTraceID)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			w.Header().Set(HeaderTraceID, traceID)

			ctx := logger.WithAttrs(r.Context(),
				slog.String("trace_id", traceID),
				slog.String("client_ip", clientIP(r)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path))

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			elapsed := time.Since(start)
			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest, elapsed > slowRequestThreshold:
				level = slog.LevelWarn
			}

			log.LogAttrs(ctx, level, "request_completed",
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.bytes),
				slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
				slog.String("user_agent", r.UserAgent()),
				slog.String("query", r.URL.RawQuery))
		})
	}
}
