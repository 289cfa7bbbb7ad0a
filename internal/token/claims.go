// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package token

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims octoka evaluates. Unknown claims are ignored;
// roles or oc of the wrong shape make the token malformed.
type Claims struct {
	Roles []string            `json:"roles,omitempty"`
	OC    map[string][]string `json:"oc,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether role is among the token's roles.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}
