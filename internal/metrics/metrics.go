// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the provider clients.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider call outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeProviderError  = "provider_error"
	OutcomeTransportError = "transport_error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unify_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unify_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unify_provider_calls_total",
			Help: "Total number of calls to social providers by outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unify_provider_call_duration_seconds",
			Help:    "Social provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	linkOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unify_link_operations_total",
			Help: "Account link/unlink results by provider",
		},
		[]string{"provider", "result"},
	)
)

// ObserveHTTP records one served request. path should be the route pattern.
func ObserveHTTP(method, path, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveProviderCall records one outbound call to a provider API.
func ObserveProviderCall(provider, outcome string, d time.Duration) {
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
	providerCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveLink records the result of a link or unlink attempt, e.g.
// ("twitter", "created"), ("facebook", "conflict").
func ObserveLink(provider, result string) {
	linkOperationsTotal.WithLabelValues(provider, result).Inc()
}
