// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Package middleware provides the HTTP middleware wrapped around every octoka
request.

All middleware use the func(http.Handler) http.Handler shape so they plug
directly into chi:

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)         // 500 on panic, logged
	r.Use(middleware.RequestID)         // X-Request-ID, logging context
	r.Use(middleware.PrometheusMetrics) // request count/duration/in-flight
	r.Use(middleware.AccessLog)         // one debug line per request

WriteError produces the plain "<code> <reason>" error bodies used by every
octoka error response.
*/
package middleware
