// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/octoka/internal/metrics"
)

// PrometheusMetrics records request count, duration and in-flight requests.
// Paths are not used as labels: every media file would become a series.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		metrics.RecordRequest(r.Method, strconv.Itoa(sw.status), time.Since(start))
	})
}
