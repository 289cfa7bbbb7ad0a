// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package api

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/octoka/internal/keys"
	"github.com/tomtom215/octoka/internal/logging"
)

// HealthPath is served outside every media prefix.
const HealthPath = "/-/health"

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status  string              `json:"status"` // healthy or degraded
	Version string              `json:"version,omitempty"`
	Uptime  string              `json:"uptime"`
	Sources []keys.SourceStatus `json:"jwks_sources"`
	// Fallback is the circuit breaker state when fallback is enabled.
	Fallback string `json:"fallback,omitempty"`
}

// Health reports per-source key status: 200 when every JWKS source holds
// keys, 503 otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := HealthStatus{
		Status:  "healthy",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Sources: []keys.SourceStatus{},
	}
	status := http.StatusOK

	if h.keys != nil {
		body.Sources = h.keys.Status()
		if !h.keys.Healthy() {
			body.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if h.fallback != nil {
		body.Fallback = h.fallback.State()
	}

	data, err := json.Marshal(body)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode health status")
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
