// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/octoka/internal/middleware"
)

// NewRouter builds the public router. Every path that is not the health
// endpoint goes through the media pipeline; paths outside the configured
// prefixes are handled there as well.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()

	// Applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)
	r.Use(mw.CORS()) // before routing so OPTIONS preflight gets CORS headers
	r.Use(mw.RateLimit())

	r.Get(HealthPath, h.Health)

	r.Get("/*", h.ServeMedia)
	r.Head("/*", h.ServeMedia)
	r.Options("/*", h.Options)

	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// NewMetricsRouter serves Prometheus metrics at path on its own listener.
func NewMetricsRouter(path string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle(path, promhttp.Handler())
	return r
}
