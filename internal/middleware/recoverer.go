// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/tomtom215/octoka/internal/logging"
)

// Recoverer turns a panic in a handler into a logged 500. If the response
// was already started the connection is aborted instead.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := newStatusWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logging.Ctx(r.Context()).Error().
				Str("panic", fmt.Sprint(rec)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("INTERNAL SERVER ERROR: handler panicked")

			if sw.wroteHeader {
				panic(http.ErrAbortHandler)
			}
			WriteError(sw, http.StatusInternalServerError)
		}()
		next.ServeHTTP(sw, r)
	})
}
