package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tagscope"

var (
	// BatchRequests counts batched chain reads by executor and outcome.
	BatchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "batch_requests_total",
		Help:      "Batched chain read round trips.",
	}, []string{"executor", "outcome"})

	// BatchCalls counts individual calls carried inside batches.
	BatchCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "batch_calls_total",
		Help:      "Individual contract calls carried in batches, by result.",
	}, []string{"executor", "result"})

	// BatchDuration observes batch round-trip latency.
	BatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "batch_duration_seconds",
		Help:      "Latency of batched chain reads.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"executor"})

	// ResolvedTokens counts tokens that produced a price, by strategy.
	ResolvedTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pricing",
		Name:      "resolved_tokens_total",
		Help:      "Tokens priced, by strategy and path.",
	}, []string{"strategy", "path"})

	// OmittedTokens counts tokens left without a price.
	OmittedTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pricing",
		Name:      "omitted_tokens_total",
		Help:      "Tokens for which no price could be derived, by strategy.",
	}, []string{"strategy"})

	// APIRequests counts feed API requests by endpoint and outcome.
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feedapi",
		Name:      "requests_total",
		Help:      "Feed API requests.",
	}, []string{"endpoint", "outcome"})

	// HTTPRequests counts served API requests by route and status code.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Served HTTP requests.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes handler latency by route.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of served HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

var registerOnce sync.Once

// MustRegister registers all collectors once on reg.
func MustRegister(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			BatchRequests,
			BatchCalls,
			BatchDuration,
			ResolvedTokens,
			OmittedTokens,
			APIRequests,
			HTTPRequests,
			HTTPDuration,
		)
	})
}
