// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package authz

import (
	"slices"
	"sort"
	"strings"

	"github.com/tomtom215/octoka/internal/token"
)

// DefaultAdminRole grants access to every event.
const DefaultAdminRole = "ROLE_ADMIN"

const (
	eventPrefix = "e:"
	readAction  = "read"
)

// Verdict is the outcome of an authorization check.
type Verdict int

const (
	// Unauthenticated covers every request that is not allowed: no token,
	// a rejected token, or a valid token without access to the event.
	Unauthenticated Verdict = iota
	Authorized
)

func (v Verdict) String() string {
	if v == Authorized {
		return "authorized"
	}
	return "unauthenticated"
}

// Authorizer evaluates claims against event IDs.
type Authorizer struct {
	AdminRole string
}

// New returns an Authorizer using adminRole, or DefaultAdminRole if empty.
func New(adminRole string) *Authorizer {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	return &Authorizer{AdminRole: adminRole}
}

// Authorize grants access if claims carry the admin role or read access to
// eventID. Nil claims are never authorized.
func (a *Authorizer) Authorize(claims *token.Claims, eventID string) Verdict {
	if claims == nil {
		return Unauthenticated
	}
	if claims.HasRole(a.AdminRole) {
		return Authorized
	}
	if eventID != "" && slices.Contains(claims.OC[eventPrefix+eventID], readAction) {
		return Authorized
	}
	return Unauthenticated
}

// IsAdmin reports whether claims carry the admin role.
func (a *Authorizer) IsAdmin(claims *token.Claims) bool {
	return claims != nil && claims.HasRole(a.AdminRole)
}

// ReadableEvents lists the event IDs claims grant read access to, sorted.
// Series ("s:") and playlist ("p:") entries are ignored.
func ReadableEvents(claims *token.Claims) []string {
	if claims == nil {
		return nil
	}
	var out []string
	for item, actions := range claims.OC {
		id, ok := strings.CutPrefix(item, eventPrefix)
		if !ok || id == "" {
			continue
		}
		if slices.Contains(actions, readAction) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
