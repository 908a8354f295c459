package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/ruz-auth/internal/state"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	externalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_calls_total",
			Help: "Calls to external APIs labeled by api, operation and outcome",
		},
		[]string{"api", "operation", "outcome"},
	)
	externalCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_duration_seconds",
			Help:    "Duration of external API calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"api", "operation"},
	)
	decodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruz_decode_lookups_total",
			Help: "Decode cache lookups labeled by result (hit, negative_hit, miss, error)",
		},
		[]string{"result"},
	)
	enrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "company_enrichments_total",
			Help: "Company enrichment attempts labeled by outcome",
		},
		[]string{"outcome"},
	)
	dictionaryImportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruz_dictionary_imported_total",
			Help: "Dictionary rows inserted or changed by the import, labeled by type",
		},
		[]string{"type"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_status_transitions_total",
			Help: "Total number of user status transitions",
		},
		[]string{"from", "to"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordHTTPRequest increments request counters and records duration.
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(route, method, statusLabel(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordExternalCall tracks a call to an external API such as the OTP provider or the registry.
func RecordExternalCall(api, operation, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}

	externalCallsTotal.WithLabelValues(api, operation, outcome).Inc()
	externalCallDurationSeconds.WithLabelValues(api, operation).Observe(duration.Seconds())
}

// RecordDecodeLookup tracks decode cache results.
func RecordDecodeLookup(result string) {
	decodeLookupsTotal.WithLabelValues(result).Inc()
}

// RecordEnrichment tracks company enrichment outcomes.
func RecordEnrichment(outcome string) {
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordDictionaryImport adds n imported rows for dictType.
func RecordDictionaryImport(dictType string, n int) {
	if n <= 0 {
		return
	}

	dictionaryImportedTotal.WithLabelValues(dictType).Add(float64(n))
}

// RecordStateTransition tracks user status transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
