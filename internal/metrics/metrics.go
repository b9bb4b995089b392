package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	matchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "amplyst_match_requests_total",
		Help: "Ranking requests by ranking source",
	}, []string{"source"})

	matchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "amplyst_match_failures_total",
		Help: "Ranking requests that ended in an error, by error class",
	}, []string{"class"})

	invocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "amplyst_model_invocations_total",
		Help: "Model invocations by provider and outcome",
	}, []string{"provider", "outcome"})

	attemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "amplyst_model_attempt_latency_ms",
		Help:    "Latency of single model attempts in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000},
	}, []string{"provider"})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "amplyst_model_queue_depth",
		Help: "Invocations waiting for a concurrency slot",
	})

	duplicatesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "amplyst_duplicate_candidates_dropped_total",
		Help: "Candidates dropped by the normalizer because their id repeated",
	})

	paddedIDs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "amplyst_padded_ids_total",
		Help: "Ids appended from the heuristic to short model rankings",
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(matchRequests, matchFailures, invocations, attemptLatency, queueDepth, duplicatesDropped, paddedIDs)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.Handler()
}

// ObserveMatch counts a completed ranking by source.
func ObserveMatch(source string, dropped, padded int) {
	ensureRegistered()
	matchRequests.WithLabelValues(source).Inc()
	if dropped > 0 {
		duplicatesDropped.Add(float64(dropped))
	}
	if padded > 0 {
		paddedIDs.Add(float64(padded))
	}
}

// ObserveFailure counts a ranking that surfaced an error.
func ObserveFailure(class string) {
	ensureRegistered()
	matchFailures.WithLabelValues(class).Inc()
}

// ObserveInvocation counts a finished invocation (all attempts included).
func ObserveInvocation(provider, outcome string) {
	ensureRegistered()
	invocations.WithLabelValues(provider, outcome).Inc()
}

// ObserveAttempt records the latency of one upstream attempt.
func ObserveAttempt(provider string, start time.Time) {
	ensureRegistered()
	attemptLatency.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
}

// SetQueueDepth publishes the current number of queued invocations.
func SetQueueDepth(n int) {
	ensureRegistered()
	queueDepth.Set(float64(n))
}
