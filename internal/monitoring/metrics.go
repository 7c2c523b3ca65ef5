// package monitoring registers the Prometheus metrics exported on /metrics
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConversionsTotal counts finished conversions by destination and outcome
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_conversions_total",
			Help: "Total number of playlist conversions",
		},
		[]string{"destination", "status"},
	)

	// ConversionDuration tracks wall time of a conversion
	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crossfade_conversion_duration_seconds",
			Help:    "Conversion duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"destination"},
	)

	// ActiveConversions is the number of conversions in flight
	ActiveConversions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crossfade_active_conversions",
			Help: "Number of conversions in progress",
		},
	)

	// TracksTotal counts per-track outcomes: scoped, relaxed, missed or batch_failed
	TracksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_tracks_total",
			Help: "Total number of source tracks processed by outcome",
		},
		[]string{"destination", "outcome"},
	)

	// MatchScore observes title/artist similarity of accepted matches
	MatchScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crossfade_match_score",
			Help:    "Jaro-Winkler similarity between source and matched track",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"destination"},
	)

	// HTTPRequestsTotal counts server requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "code"},
	)

	// HTTPRequestDuration tracks server request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crossfade_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ErrorsTotal tracks errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

// RecordConversionStart records the start of a conversion
func RecordConversionStart() {
	ActiveConversions.Inc()
}

// RecordConversionDone records a finished conversion
func RecordConversionDone(destination, status string, duration time.Duration) {
	ConversionsTotal.WithLabelValues(destination, status).Inc()
	ConversionDuration.WithLabelValues(destination).Observe(duration.Seconds())
	ActiveConversions.Dec()
}

// RecordTrack records one per-track outcome
func RecordTrack(destination, outcome string) {
	TracksTotal.WithLabelValues(destination, outcome).Inc()
}

// RecordMatchScore records the similarity of an accepted match
func RecordMatchScore(destination string, score float64) {
	MatchScore.WithLabelValues(destination).Observe(score)
}

// RecordHTTPRequest records a served request
func RecordHTTPRequest(route, code string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordError records an error
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}
