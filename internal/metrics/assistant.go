package metrics

import "github.com/prometheus/client_golang/prometheus"

// Oracle, geo and conversation Prometheus metrics.
var (
	OracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "oracle_requests_total",
			Help:      "Total number of language model requests",
		},
		[]string{"model", "purpose", "status"},
	)

	OracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docfinder",
			Name:      "oracle_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"model", "purpose"},
	)

	OracleTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "oracle_tokens_total",
			Help:      "Total language model tokens consumed",
		},
		[]string{"model", "type"},
	)

	OracleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "oracle_errors_total",
			Help:      "Total language model errors",
		},
		[]string{"model", "error_type"},
	)

	// OracleFallbacksTotal counts turns served by the deterministic path.
	OracleFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "oracle_fallbacks_total",
			Help:      "Turns that fell back from the language model to keyword matching",
		},
		[]string{"step"}, // "classify" / "filter" / "recommend"
	)

	LocationFilterOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "location_filter_outcomes_total",
			Help:      "Location filter interpretations by outcome",
		},
		[]string{"outcome"}, // "validated" / "unvalidated" / "no_opinion"
	)

	GeoRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "geo_requests_total",
			Help:      "Total geocoder and static map requests",
		},
		[]string{"kind", "status"}, // kind: "geocode" / "map"
	)

	GeocodeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docfinder",
			Name:      "conversation_turns_total",
			Help:      "Processed conversation turns",
		},
		[]string{"channel", "event", "result"}, // result: "ok" / "stale" / "error"
	)

	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docfinder",
			Name:      "conversation_turn_duration_seconds",
			Help:      "Conversation turn processing time in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"channel", "event"},
	)
)

var assistantMetricsRegistered bool

// RegisterAssistantMetrics registers oracle, geo and conversation metrics. Must be called once from main.
func RegisterAssistantMetrics() {
	if assistantMetricsRegistered {
		return
	}
	prometheus.MustRegister(OracleRequestsTotal)
	prometheus.MustRegister(OracleRequestDuration)
	prometheus.MustRegister(OracleTokensTotal)
	prometheus.MustRegister(OracleErrorsTotal)
	prometheus.MustRegister(OracleFallbacksTotal)
	prometheus.MustRegister(LocationFilterOutcomesTotal)
	prometheus.MustRegister(GeoRequestsTotal)
	prometheus.MustRegister(GeocodeCacheTotal)
	prometheus.MustRegister(TurnsTotal)
	prometheus.MustRegister(TurnDuration)
	assistantMetricsRegistered = true
}
