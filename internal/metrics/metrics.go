// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visit_transitions_total",
		Help: "Visit request state transitions applied, by action.",
	}, []string{"action"})

	HoursDeducted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quota_hours_deducted_total",
		Help: "Support hours deducted from customer quotas.",
	})

	DeductionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quota_deductions_rejected_total",
		Help: "Visit recordings refused for insufficient quota.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification deliveries by sink and result.",
	}, []string{"sink", "result"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Requests refused by the rate limiter, by scope.",
	}, []string{"scope"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
