// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package request

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tomtom215/octoka/internal/logging"
)

// SourceKind says where in a request a token is carried.
type SourceKind string

const (
	SourceHeader SourceKind = "header"
	SourceQuery  SourceKind = "query"
)

// TokenSource is one place to look for a token.
type TokenSource struct {
	Kind SourceKind
	Name string
	// Prefix is stripped from header values; a value without it is ignored.
	Prefix string
}

// DefaultTokenSources looks at "Authorization: Bearer" first, then ?jwt=.
func DefaultTokenSources() []TokenSource {
	return []TokenSource{
		{Kind: SourceHeader, Name: "Authorization", Prefix: "Bearer "},
		{Kind: SourceQuery, Name: "jwt"},
	}
}

// Classifier splits request paths and extracts tokens. It is immutable and
// safe for concurrent use.
type Classifier struct {
	prefixes []string
	sources  []TokenSource
}

// NewClassifier builds a Classifier. sources defaults to DefaultTokenSources.
func NewClassifier(prefixes []string, sources []TokenSource) (*Classifier, error) {
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("request: at least one path prefix is required")
	}
	if len(sources) == 0 {
		sources = DefaultTokenSources()
	}
	for _, s := range sources {
		if s.Kind != SourceHeader && s.Kind != SourceQuery {
			return nil, fmt.Errorf("request: unknown token source %q", s.Kind)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("request: token source %q needs a name", s.Kind)
		}
	}

	return &Classifier{
		prefixes: append([]string(nil), prefixes...),
		sources:  append([]TokenSource(nil), sources...),
	}, nil
}

// Classify splits the escaped request path. ok is false when the path does
// not have the prefix/org/channel/event/suffix shape, meaning the request is
// not octoka's concern.
func (c *Classifier) Classify(escapedPath string) (Path, bool) {
	return splitPath(escapedPath, c.prefixes)
}

// ClassifyRequest classifies r.URL.EscapedPath().
func (c *Classifier) ClassifyRequest(r *http.Request) (Path, bool) {
	return c.Classify(r.URL.EscapedPath())
}

// Token returns the first non-empty token found in the configured sources.
func (c *Classifier) Token(r *http.Request) (string, bool) {
	var query map[string][]string
	for _, src := range c.sources {
		switch src.Kind {
		case SourceHeader:
			if tok, ok := headerToken(r, src); ok {
				return tok, true
			}
		case SourceQuery:
			if query == nil {
				query = r.URL.Query()
			}
			if values := query[src.Name]; len(values) > 0 && values[0] != "" {
				return values[0], true
			}
		}
	}
	return "", false
}

func headerToken(r *http.Request, src TokenSource) (string, bool) {
	value := r.Header.Get(src.Name)
	if value == "" {
		return "", false
	}
	if !utf8.ValidString(value) {
		logging.Ctx(r.Context()).Warn().
			Str("header", src.Name).
			Msg("Ignoring non UTF-8 token header")
		return "", false
	}

	tok, ok := strings.CutPrefix(value, src.Prefix)
	if !ok {
		logging.Ctx(r.Context()).Debug().
			Str("header", src.Name).
			Msg("Token header lacks the configured prefix")
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
