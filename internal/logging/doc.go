// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package logging provides the process-wide zerolog logger used by octoka.
//
// The logger is configured once from the [logging] config section and is
// then reached through package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("source", url).Msg("Fetched JWKS")
//	logging.Ctx(r.Context()).Debug().Str("path", p).Msg("Serving file")
//
// Request-scoped fields are carried in the context and added by Ctx:
// request_id (set by the RequestID middleware) and event (set once the
// path has been classified).
//
// Libraries that only speak log/slog (the suture supervisor) are bridged
// through SlogHandler so that every line ends up in the same zerolog stream.
package logging
