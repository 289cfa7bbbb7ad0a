// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package authz decides whether verified token claims grant read access to
// an Opencast event.
//
// The decision looks only at the claims and the event ID taken from the
// request path. No ACL, series membership or ownership data is consulted:
//
//	roles contains the admin role          -> Authorized
//	oc["e:<event-id>"] contains "read"     -> Authorized
//	otherwise                              -> Unauthenticated
package authz
