// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package metrics holds octoka's Prometheus instruments.
//
// Instruments are registered on the default registry through promauto and
// exported by promhttp when metrics.enabled is set.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics. outcome is the pipeline decision (file, empty,
	// redirect, forbidden, fallback, not_applicable, ...).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_http_requests_total",
			Help: "Total number of HTTP requests by method and status code",
		},
		[]string{"method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "octoka_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, including file streaming",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "octoka_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_decisions_total",
			Help: "Authorization pipeline outcomes",
		},
		[]string{"outcome"},
	)

	TokenRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_token_rejections_total",
			Help: "Tokens that failed verification, by reason",
		},
		[]string{"reason"},
	)

	BytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "octoka_file_bytes_served_total",
			Help: "Total number of file body bytes written to clients",
		},
	)

	// JWKS metrics
	JWKSFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "octoka_jwks_fetch_duration_seconds",
			Help:    "Duration of JWKS fetch operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source", "result"},
	)

	JWKSFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_jwks_fetch_errors_total",
			Help: "Total number of failed JWKS fetches",
		},
		[]string{"source"},
	)

	JWKSKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "octoka_jwks_keys",
			Help: "Current number of usable keys per JWKS source",
		},
		[]string{"source"},
	)

	JWKSLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "octoka_jwks_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful fetch per JWKS source",
		},
		[]string{"source"},
	)

	// A rotation is a fetch whose key ID set differs from the previous one.
	JWKSRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_jwks_key_rotations_total",
			Help: "Total number of JWKS key rotation events detected",
		},
		[]string{"source"},
	)

	JWKSKeysAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_jwks_keys_added_total",
			Help: "Total number of keys added during rotations",
		},
		[]string{"source"},
	)

	JWKSKeysRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_jwks_keys_removed_total",
			Help: "Total number of keys removed during rotations",
		},
		[]string{"source"},
	)

	// result: hit, refreshed, not_found, suppressed, throttled, mismatch
	KeyLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_key_lookups_total",
			Help: "Key lookups by result",
		},
		[]string{"result"},
	)

	// Fallback / circuit breaker metrics
	FallbackRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_fallback_requests_total",
			Help: "Requests forwarded to the fallback upstream, by result",
		},
		[]string{"result"},
	)

	FallbackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "octoka_fallback_duration_seconds",
			Help:    "Time until the fallback upstream returned response headers",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "octoka_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "octoka_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "octoka_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures seen by the breaker",
		},
		[]string{"name"},
	)
)

// RecordRequest records a completed HTTP request.
func RecordRequest(method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, status).Inc()
	RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		ActiveRequests.Inc()
	} else {
		ActiveRequests.Dec()
	}
}

// RecordDecision counts one pipeline outcome.
func RecordDecision(outcome string) {
	DecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenRejection counts one failed token by reason.
func RecordTokenRejection(reason string) {
	TokenRejections.WithLabelValues(reason).Inc()
}

// RecordJWKSFetch records the result of fetching one JWKS source.
func RecordJWKSFetch(source string, duration time.Duration, keys int, err error) {
	if err != nil {
		JWKSFetchDuration.WithLabelValues(source, "error").Observe(duration.Seconds())
		JWKSFetchErrors.WithLabelValues(source).Inc()
		return
	}
	JWKSFetchDuration.WithLabelValues(source, "success").Observe(duration.Seconds())
	JWKSKeys.WithLabelValues(source).Set(float64(keys))
	JWKSLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
}

// RecordJWKSRotation records a change in a source's key ID set.
func RecordJWKSRotation(source string, added, removed int) {
	JWKSRotations.WithLabelValues(source).Inc()
	JWKSKeysAdded.WithLabelValues(source).Add(float64(added))
	JWKSKeysRemoved.WithLabelValues(source).Add(float64(removed))
}

// RecordKeyLookup counts a key lookup by result.
func RecordKeyLookup(result string) {
	KeyLookups.WithLabelValues(result).Inc()
}

// RecordFallback records one forwarded request.
func RecordFallback(result string, duration time.Duration) {
	FallbackRequests.WithLabelValues(result).Inc()
	if duration > 0 {
		FallbackDuration.Observe(duration.Seconds())
	}
}
