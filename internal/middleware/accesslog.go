// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/octoka/internal/logging"
)

// AccessLog writes one debug line per finished request. Query strings are
// never logged since they may carry tokens.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !logging.IsLevelEnabled(zerolog.DebugLevel) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		logging.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.EscapedPath()).
			Int("status", sw.status).
			Int64("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("Request completed")
	})
}
