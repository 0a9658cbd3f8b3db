package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/mailroom/internal/metrics"
	"github.com/yanizio/mailroom/internal/requestinfo"
)

// AccessLog writes one "request completed" entry per request and counts it
// in http_requests_total by chi route pattern.  Must run inside
// requestinfo.Enrich and inside the chi router so the pattern is known.
func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if info := requestinfo.FromContext(r.Context()); info != nil {
				fields = append(fields,
					zap.Stringer("request_id", info.ID),
					zap.Stringer("ip", info.IP),
					zap.Time("arrived_at", info.Timestamp),
					zap.String("browser", info.UA.Browser),
					zap.String("browser_version", info.UA.Version),
					zap.String("os", info.UA.OS),
					zap.String("device", info.UA.Device),
					zap.Bool("bot", info.UA.IsBot),
				)
			}
			log.Info("request completed", fields...)
		})
	}
}

// Recover turns a handler panic into a 500 and an error log entry.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
