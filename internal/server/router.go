// internal/server/router.go
//
// Route table.
//
//	GET  /health_check   200, empty body; never touches the database
//	POST /subscriptions  subscription write path
//	GET  /metrics        Prometheus exposition
//
// Middleware order, outermost first: request info, panic recovery, access
// log, security headers, HTTPS redirect, CORS.  The rate limiter wraps only
// POST /subscriptions.

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/mailroom/internal/config"
	"github.com/yanizio/mailroom/internal/middleware"
	"github.com/yanizio/mailroom/internal/requestinfo"
)

// NewRouter builds the handler tree.  subscribe serves POST /subscriptions.
func NewRouter(app config.ApplicationSettings, subscribe http.Handler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(requestinfo.Enrich)
	r.Use(middleware.Recover(log))
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Security)
	r.Use(middleware.ForceHTTPS(app.ForceHTTPS, app.BaseURL))
	if len(app.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: app.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", requestinfo.HeaderRequestID},
			ExposedHeaders: []string{requestinfo.HeaderRequestID},
			MaxAge:         300,
		}))
	}

	r.Get("/health_check", HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.With(middleware.RateLimit(app.RateLimit.RPS, app.RateLimit.Burst)).
		Method(http.MethodPost, "/subscriptions", subscribe)

	return r
}

// HealthCheck answers 200 with a zero-length body.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
