// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_saves_total",
			Help: "File saves by outcome (saved, skipped, failed)",
		},
		[]string{"result"},
	)

	persistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codepad_persist_duration_seconds",
			Help:    "Durable store write latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	runtimeWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codepad_runtime_write_failures_total",
			Help: "Failed writes to the runtime filesystem mirror",
		},
	)

	structuralOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_structural_ops_total",
			Help: "Structural tree edits by operation",
		},
		[]string{"op"},
	)

	treeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_tree_nodes",
			Help: "Number of files and folders in the workspace tree",
		},
	)

	openSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_open_sessions",
			Help: "Number of open editing sessions",
		},
	)

	suggestionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_suggestion_requests_total",
			Help: "Suggestion requests by outcome",
		},
		[]string{"result"},
	)

	suggestionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codepad_suggestion_latency_seconds",
			Help:    "Suggestion service round-trip latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
	)

	suggestionCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_suggestion_cache_total",
			Help: "Suggestion cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	suggestionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_suggestion_outcomes_total",
			Help: "What happened to displayed suggestions (accepted, rejected, invalidated, stale)",
		},
		[]string{"outcome"},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_websocket_clients",
			Help: "Connected websocket clients",
		},
	)
)

// RecordSave counts a save attempt outcome.
func RecordSave(result string) {
	savesTotal.WithLabelValues(result).Inc()
}

// RecordPersist records a durable store write.
func RecordPersist(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	persistDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordRuntimeWriteFailure counts a failed runtime mirror write.
func RecordRuntimeWriteFailure() {
	runtimeWriteFailures.Inc()
}

// RecordStructuralOp counts a structural edit.
func RecordStructuralOp(op string) {
	structuralOpsTotal.WithLabelValues(op).Inc()
}

// SetTreeSize sets the node count gauge.
func SetTreeSize(n int) {
	treeSize.Set(float64(n))
}

// SetOpenSessions sets the open sessions gauge.
func SetOpenSessions(n int) {
	openSessions.Set(float64(n))
}

// RecordSuggestionRequest counts a suggestion request and its latency.
func RecordSuggestionRequest(result string, d time.Duration) {
	suggestionRequests.WithLabelValues(result).Inc()
	if d > 0 {
		suggestionLatency.Observe(d.Seconds())
	}
}

// RecordSuggestionCache counts a cache lookup.
func RecordSuggestionCache(hit bool) {
	if hit {
		suggestionCache.WithLabelValues("hit").Inc()
		return
	}
	suggestionCache.WithLabelValues("miss").Inc()
}

// RecordSuggestionOutcome counts what happened to a suggestion slot.
func RecordSuggestionOutcome(outcome string) {
	suggestionOutcomes.WithLabelValues(outcome).Inc()
}

// SetWebsocketClients sets the connected client gauge.
func SetWebsocketClients(n int) {
	websocketClients.Set(float64(n))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
