// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package keys fetches, caches and refreshes the public keys used to verify
// tokens.
//
// Each configured JWKS URL is a source with its own immutable key snapshot,
// replaced atomically on every successful fetch. Readers never lock. Every
// trigger for fetching (startup, background interval, stale source, unknown
// key ID) goes through the same single-flight refresh routine, so concurrent
// triggers for one source result in exactly one outstanding HTTP request.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

var (
	// ErrKeyNotFound means no configured source has a key matching the token.
	ErrKeyNotFound = errors.New("keys: no matching key")

	// ErrAlgorithmMismatch means the key selected by kid is for a different
	// algorithm than the token header claims.
	ErrAlgorithmMismatch = errors.New("keys: key algorithm does not match token algorithm")

	errUnsupportedKey = errors.New("unsupported key")
)

// minRSABits is the smallest RSA modulus accepted from a JWKS.
const minRSABits = 2048

// Key is one verification key. Keys are immutable once built.
type Key struct {
	// ID is the JWK kid; empty for keys published without one.
	ID string
	// Algorithm is the JWS alg this key verifies (ES256, EdDSA, ...).
	Algorithm string
	Public    crypto.PublicKey
	// Source is the JWKS URL the key came from.
	Source string
}

// keyFromJWK converts a parsed JWK into a Key, rejecting keys that cannot
// be used for asymmetric signature verification.
func keyFromJWK(jwk *jose.JSONWebKey, source string) (*Key, error) {
	if jwk.Use != "" && jwk.Use != "sig" {
		return nil, fmt.Errorf("%w: use %q", errUnsupportedKey, jwk.Use)
	}
	if _, symmetric := jwk.Key.([]byte); symmetric {
		return nil, fmt.Errorf("%w: symmetric key", errUnsupportedKey)
	}

	public := jwk.Public()
	if !public.Valid() {
		return nil, fmt.Errorf("%w: no public key material", errUnsupportedKey)
	}

	alg, err := algorithmFor(public.Key, jwk.Algorithm)
	if err != nil {
		return nil, err
	}

	return &Key{
		ID:        jwk.KeyID,
		Algorithm: alg,
		Public:    public.Key,
		Source:    source,
	}, nil
}

// algorithmFor derives the JWS algorithm from the key type. EC and OKP keys
// determine it by curve; RSA keys must declare it because one RSA key could
// serve several algorithms.
func algorithmFor(pub crypto.PublicKey, declared string) (string, error) {
	var derived string
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			derived = "ES256"
		case elliptic.P384():
			derived = "ES384"
		case elliptic.P521():
			derived = "ES512"
		default:
			return "", fmt.Errorf("%w: curve %s", errUnsupportedKey, k.Curve.Params().Name)
		}
	case ed25519.PublicKey:
		derived = "EdDSA"
	case *rsa.PublicKey:
		if k.N.BitLen() < minRSABits {
			return "", fmt.Errorf("%w: RSA key of %d bits", errUnsupportedKey, k.N.BitLen())
		}
		switch declared {
		case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
			return declared, nil
		case "":
			return "", fmt.Errorf("%w: RSA key without alg", errUnsupportedKey)
		default:
			return "", fmt.Errorf("%w: RSA key with alg %q", errUnsupportedKey, declared)
		}
	default:
		return "", fmt.Errorf("%w: key type %T", errUnsupportedKey, pub)
	}

	if declared != "" && declared != derived {
		return "", fmt.Errorf("%w: alg %q does not fit %s key", errUnsupportedKey, declared, derived)
	}
	return derived, nil
}
