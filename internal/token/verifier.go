// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/octoka/internal/keys"
)

// Verification failures. Every error returned by Verify wraps exactly one.
var (
	ErrMalformed            = errors.New("malformed token")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrKeyNotFound          = keys.ErrKeyNotFound
	ErrAlgorithmMismatch    = keys.ErrAlgorithmMismatch
	ErrBadSignature         = errors.New("signature verification failed")
	ErrExpMissing           = errors.New("required exp claim missing")
	ErrExpired              = errors.New("token expired")
	ErrNotYetValid          = errors.New("token not valid yet")
)

// DefaultAlgorithms are accepted when Options.Algorithms is empty.
var DefaultAlgorithms = []string{"ES256", "ES384", "EdDSA"}

// KeyResolver returns the keys that may verify a token with the given
// header kid (possibly empty) and alg.
type KeyResolver interface {
	Resolve(ctx context.Context, kid, alg string) ([]*keys.Key, error)
}

// Options configures a Verifier.
type Options struct {
	Algorithms []string
	Leeway     time.Duration
	RequireExp bool
}

// Verifier checks signature and time claims of JWTs.
type Verifier struct {
	resolver KeyResolver
	parser   *jwt.Parser
	allowed  map[string]bool
}

// NewVerifier creates a Verifier. Symmetric algorithms and "none" are
// refused even if listed.
func NewVerifier(resolver KeyResolver, opts Options) (*Verifier, error) {
	if resolver == nil {
		return nil, errors.New("token: key resolver is required")
	}
	algs := opts.Algorithms
	if len(algs) == 0 {
		algs = DefaultAlgorithms
	}

	allowed := make(map[string]bool, len(algs))
	for _, alg := range algs {
		switch alg {
		case "ES256", "ES384", "ES512", "EdDSA",
			"RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
			allowed[alg] = true
		default:
			return nil, fmt.Errorf("token: algorithm %q is not allowed", alg)
		}
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(algs),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.RequireExp {
		parserOpts = append(parserOpts, jwt.WithExpirationRequired())
	}

	return &Verifier{
		resolver: resolver,
		parser:   jwt.NewParser(parserOpts...),
		allowed:  allowed,
	}, nil
}

// Verify parses raw, checks its signature against the trusted keys and
// validates exp/nbf. On success the application claims are returned.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.keyFor(ctx, t)
	})
	if err != nil {
		return nil, v.classify(tok, err)
	}
	if !tok.Valid {
		return nil, ErrBadSignature
	}
	return claims, nil
}

func (v *Verifier) keyFor(ctx context.Context, t *jwt.Token) (any, error) {
	alg := t.Method.Alg()
	kid, _ := t.Header["kid"].(string)

	found, err := v.resolver.Resolve(ctx, kid, alg)
	if err != nil {
		return nil, err
	}
	if len(found) == 1 {
		return found[0].Public, nil
	}

	set := jwt.VerificationKeySet{Keys: make([]jwt.VerificationKey, 0, len(found))}
	for _, k := range found {
		set.Keys = append(set.Keys, k.Public)
	}
	return set, nil
}

// classify maps library errors onto the package sentinels.
func (v *Verifier) classify(tok *jwt.Token, err error) error {
	switch {
	case errors.Is(err, ErrAlgorithmMismatch), errors.Is(err, ErrKeyNotFound):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case tok != nil && tok.Method != nil && !v.allowed[tok.Method.Alg()]:
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, tok.Method.Alg())
	case errors.Is(err, jwt.ErrTokenUnverifiable) && (tok == nil || tok.Method == nil):
		// Unknown alg header: the library has no signing method for it.
		return fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", ErrExpMissing, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	default:
		// Key resolution errors that are not lookups (cancellation) and
		// anything else the parser reports.
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
}

// Reason returns a short label for a Verify error, for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrAlgorithmMismatch):
		return "algorithm_mismatch"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrExpMissing):
		return "exp_missing"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotYetValid):
		return "not_yet_valid"
	default:
		return "bad_signature"
	}
}
