// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tomtom215/octoka/internal/authz"
	"github.com/tomtom215/octoka/internal/fileserve"
	"github.com/tomtom215/octoka/internal/logging"
	"github.com/tomtom215/octoka/internal/metrics"
	"github.com/tomtom215/octoka/internal/middleware"
	"github.com/tomtom215/octoka/internal/policy"
	"github.com/tomtom215/octoka/internal/request"
	"github.com/tomtom215/octoka/internal/token"
)

const allowedMethods = "GET, HEAD, OPTIONS"

// ServeMedia runs the authorization pipeline for GET and HEAD:
// classify the path, verify the token, authorize the event, then answer
// according to the response policy.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	path, ok := h.classifier.ClassifyRequest(r)
	if !ok {
		h.notApplicable(w, r)
		return
	}

	// Every later log line for this request names the event.
	r = r.WithContext(logging.ContextWithEvent(r.Context(), path.EventID))
	log := logging.Ctx(r.Context())

	if path.HasDotSegments() {
		metrics.RecordDecision(policy.Forbidden.String())
		log.Warn().Str("path", path.String()).Msg("Refusing path with dot segments")
		middleware.WriteError(w, http.StatusForbidden)
		return
	}

	verdict := h.authorize(r, path, log)
	outcome := h.policy.Resolve(verdict, path)
	metrics.RecordDecision(outcome.Kind.String())

	log.Debug().
		Stringer("verdict", verdict).
		Stringer("outcome", outcome.Kind).
		Msg("Request authorized")

	switch outcome.Kind {
	case policy.ServeFile:
		h.serveFile(w, r, path)
	case policy.EmptyOK:
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	case policy.Redirect:
		w.Header().Set("X-Accel-Redirect", outcome.RedirectPath)
		w.WriteHeader(http.StatusNoContent)
	case policy.ForwardToFallback:
		h.fallback.Forward(w, r)
	default:
		middleware.WriteError(w, http.StatusForbidden)
	}
}

// authorize never fails: every token problem collapses to Unauthenticated.
// The reason is only logged and counted.
func (h *Handler) authorize(r *http.Request, path request.Path, log *zerolog.Logger) authz.Verdict {
	raw, found := h.classifier.Token(r)
	if !found {
		log.Debug().Msg("No token in request")
		return authz.Unauthenticated
	}

	claims, err := h.verifier.Verify(r.Context(), raw)
	if err != nil {
		reason := token.Reason(err)
		metrics.RecordTokenRejection(reason)
		log.Debug().Err(err).Str("reason", reason).Msg("Token rejected")
		return authz.Unauthenticated
	}

	verdict := h.authorizer.Authorize(claims, path.EventID)
	if verdict != authz.Authorized && logging.IsLevelEnabled(zerolog.DebugLevel) {
		log.Debug().
			Strs("readable_events", authz.ReadableEvents(claims)).
			Msg("Token does not grant read access to event")
	}
	return verdict
}

func (h *Handler) notApplicable(w http.ResponseWriter, r *http.Request) {
	if h.fallback != nil {
		metrics.RecordDecision(policy.ForwardToFallback.String())
		h.fallback.Forward(w, r)
		return
	}
	metrics.RecordDecision("not_applicable")
	logging.Ctx(r.Context()).Debug().Msg("Path does not match any configured prefix")
	middleware.WriteError(w, http.StatusBadRequest)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path request.Path) {
	n, err := h.files.Serve(w, r, path)
	metrics.BytesServed.Add(float64(n))
	if err == nil || errors.Is(err, fileserve.ErrAborted) {
		return
	}

	status := fileserve.StatusOf(err)
	log := logging.Ctx(r.Context())
	switch status {
	case http.StatusForbidden:
		log.Warn().Err(err).Str("path", path.String()).Msg("Refusing path outside the event directory")
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", path.String()).Msg("Failed to read file")
	default:
		log.Debug().Err(err).Int("status", status).Msg("File not served")
	}
	middleware.WriteError(w, status)
}

// Options answers any OPTIONS request. CORS preflight headers are added by
// the CORS middleware before this runs.
func (h *Handler) Options(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", allowedMethods)
	w.WriteHeader(http.StatusNoContent)
}

// MethodNotAllowed answers every method other than GET, HEAD and OPTIONS.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", allowedMethods)
	middleware.WriteError(w, http.StatusMethodNotAllowed)
}
