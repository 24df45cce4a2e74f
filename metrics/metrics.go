// Package metrics holds the prometheus collectors for the payment flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PaymentInitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "payment_init_total",
		Help:      "Payment initializations by application type and result.",
	}, []string{"type", "result"})

	PaymentVerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "payment_verify_total",
		Help:      "Payment status checks by resulting status.",
	}, []string{"status"})

	GatewaySessionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "gateway_session_outcome_total",
		Help:      "Gateway sessions by terminal state.",
	}, []string{"state"})

	SessionExpiries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "session_expiries_total",
		Help:      "Forced logouts triggered by rejected tokens.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal",
		Name:      "http_request_duration_seconds",
		Help:      "Bridge HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
