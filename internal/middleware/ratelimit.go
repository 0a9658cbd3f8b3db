package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/yanizio/mailroom/internal/metrics"
)

// RateLimit admits at most rps requests per second with the given burst
// across all clients, answering 429 otherwise.  rps <= 0 disables it.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			metrics.RateLimitedTotal.Inc()
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
}
