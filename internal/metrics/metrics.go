// Package metrics holds Prometheus instruments used across the service.  All
// collectors are registered with the global registry, so mounting
// promhttp.Handler() on /metrics is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for SubscriptionsTotal.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

var (
	SubscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_total",
			Help: "Subscription submissions by outcome (ok, invalid, failed).",
		}, []string{"outcome"})

	SubscriptionInsertSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subscription_insert_seconds",
			Help:    "Time spent acquiring a connection and inserting one subscription.",
			Buckets: prometheus.DefBuckets,
		})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"})

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the subscription rate limiter.",
		})
)

func init() {
	prometheus.MustRegister(
		SubscriptionsTotal,
		SubscriptionInsertSeconds,
		HTTPRequestsTotal,
		RateLimitedTotal,
	)
}
