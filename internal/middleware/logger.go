// AngelaMos | 2026
// logger.go

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/metrics"
)

// Logger writes one structured line per request and records the request
// in the HTTP metrics. Panics are recovered and answered with a 500.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"panic", rec,
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
					if ww.Status() == 0 {
						core.InternalServerError(ww, fmt.Errorf("panic: %v", rec))
					}
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				elapsed := time.Since(start)
				route := routePattern(r)

				metrics.HTTPRequestsTotal.
					WithLabelValues(r.Method, route, strconv.Itoa(status)).
					Inc()
				metrics.HTTPRequestDuration.
					WithLabelValues(r.Method, route).
					Observe(elapsed.Seconds())

				level := slog.LevelInfo
				switch {
				case status >= 500:
					level = slog.LevelError
				case status >= 400:
					level = slog.LevelWarn
				}

				logger.LogAttrs(r.Context(), level, "http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("route", route),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", elapsed),
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("trace_id", core.TraceIDFromContext(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// routePattern keeps metric labels bounded by using chi's matched pattern
// instead of the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
