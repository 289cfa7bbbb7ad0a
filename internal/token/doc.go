// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Package token verifies the JWTs presented with media requests.

A Verifier parses a compact JWS with golang-jwt/jwt/v5, restricted to the
configured asymmetric algorithms, and resolves the verification key through a
KeyResolver (normally a *keys.Manager). Tokens carrying a kid are checked
against exactly that key; tokens without one are tried against every trusted
key of the token's algorithm.

Registered time claims are enforced with a configurable leeway. exp is
required unless disabled. The only application claims read are:

	roles  []string             // "ROLE_ADMIN" grants access to everything
	oc     map[string][]string  // "e:<event-id>": ["read", ...]

Every failure is reported as one of the package's sentinel errors so callers
can log a reason without inspecting library errors:

	claims, err := v.Verify(ctx, raw)
	if err != nil {
		log.Debug().Str("reason", token.Reason(err)).Msg("Rejected JWT")
	}
*/
package token
