// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package keys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/octoka/internal/logging"
)

// maxJWKSSize bounds the JWKS document we are willing to read.
const maxJWKSSize = 1 << 20

// Fetcher retrieves the keys published at a JWKS URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]*Key, error)
}

// HTTPFetcher fetches JWKS documents over HTTP(S).
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher. A nil client gets a 30s-timeout default;
// per-fetch deadlines come from the context.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = "octoka"
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

// jwksDocument defers per-key parsing so one bad key does not fail the set.
type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

// Fetch downloads and parses the JWKS at url. Keys that cannot be used
// (symmetric, encryption-only, unsupported curve, ...) are skipped.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]*Key, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize+1))
	if err != nil {
		return nil, fmt.Errorf("read JWKS body: %w", err)
	}
	if len(body) > maxJWKSSize {
		return nil, fmt.Errorf("JWKS document exceeds %d bytes", maxJWKSSize)
	}

	return parseJWKS(body, url)
}

func parseJWKS(body []byte, source string) ([]*Key, error) {
	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}
	if doc.Keys == nil {
		return nil, errors.New("decode JWKS: missing \"keys\" array")
	}

	keys := make([]*Key, 0, len(doc.Keys))
	for i, raw := range doc.Keys {
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			logging.Debug().Err(err).Str("source", source).Int("index", i).Msg("Skipping unparsable JWK")
			continue
		}
		key, err := keyFromJWK(&jwk, source)
		if err != nil {
			logging.Debug().Err(err).Str("source", source).Str("kid", jwk.KeyID).Msg("Skipping unusable JWK")
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
