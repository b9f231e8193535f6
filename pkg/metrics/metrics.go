package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesHandled counts sessions by final outcome
	// (generated, fallback, config_error, invalid_input, session_error).
	MessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Name:      "messages_handled_total",
		Help:      "Messages processed by the session engine, by outcome",
	}, []string{"outcome"})

	// BackendAttempts counts individual generation attempts per provider.
	BackendAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Name:      "backend_attempts_total",
		Help:      "Generation attempts against the AI backend",
	}, []string{"provider", "result"})

	// BackendFaults counts classified backend failures.
	BackendFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Name:      "backend_faults_total",
		Help:      "Backend failures by fault category",
	}, []string{"provider", "category"})

	// RateLimitWait observes how long callers blocked on the limiter.
	RateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "companion",
		Name:      "rate_limit_wait_seconds",
		Help:      "Time spent waiting for rate limiter admission",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// DuplicateMessages counts inbound messages suppressed by deduplication.
	DuplicateMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "companion",
		Name:      "duplicate_messages_total",
		Help:      "Inbound messages dropped as redeliveries",
	})
)

// Handler exposes the Prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
