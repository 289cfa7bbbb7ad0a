// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package middleware

import (
	"net/http"
	"strconv"
)

// WriteError replies with status and a "<code> <reason>" plain text body.
func WriteError(w http.ResponseWriter, status int) {
	body := strconv.Itoa(status) + " " + http.StatusText(status)
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
