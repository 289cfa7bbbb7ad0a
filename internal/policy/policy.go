// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package policy maps an authorization verdict and the static on-allow /
// on-deny configuration to the concrete response to send.
//
//	verdict          policy                   fallback  outcome
//	Authorized       file                     -         ServeFile
//	Authorized       empty                    -         EmptyOK
//	Authorized       x-accel-redirect:<p>     -         Redirect
//	Unauthenticated  any                      on        ForwardToFallback
//	Unauthenticated  forbidden                off       Forbidden
//	Unauthenticated  x-accel-redirect:<p>     off       Redirect
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/octoka/internal/authz"
	"github.com/tomtom215/octoka/internal/request"
)

const redirectPrefix = "x-accel-redirect:"

// ErrInvalidPolicy is returned for unparsable on_allow / on_deny values.
var ErrInvalidPolicy = errors.New("invalid response policy")

// AllowKind is the action taken for authorized requests.
type AllowKind int

const (
	AllowFile AllowKind = iota
	AllowEmpty
	AllowRedirect
)

// OnAllow is the parsed on_allow setting.
type OnAllow struct {
	Kind AllowKind
	// Path is the X-Accel-Redirect target prefix, without surrounding slashes.
	Path string
}

// DenyKind is the action taken for unauthenticated requests when no
// fallback is configured.
type DenyKind int

const (
	DenyForbidden DenyKind = iota
	DenyRedirect
)

// OnDeny is the parsed on_deny setting.
type OnDeny struct {
	Kind DenyKind
	Path string
}

// ParseOnAllow parses "file", "empty" or "x-accel-redirect:<path>".
func ParseOnAllow(s string) (OnAllow, error) {
	switch s {
	case "file":
		return OnAllow{Kind: AllowFile}, nil
	case "empty":
		return OnAllow{Kind: AllowEmpty}, nil
	}
	if p, ok := parseRedirect(s); ok {
		return OnAllow{Kind: AllowRedirect, Path: p}, nil
	}
	return OnAllow{}, fmt.Errorf("%w: on_allow %q (want file, empty or x-accel-redirect:<path>)", ErrInvalidPolicy, s)
}

// ParseOnDeny parses "forbidden" or "x-accel-redirect:<path>".
func ParseOnDeny(s string) (OnDeny, error) {
	if s == "forbidden" {
		return OnDeny{Kind: DenyForbidden}, nil
	}
	if p, ok := parseRedirect(s); ok {
		return OnDeny{Kind: DenyRedirect, Path: p}, nil
	}
	return OnDeny{}, fmt.Errorf("%w: on_deny %q (want forbidden or x-accel-redirect:<path>)", ErrInvalidPolicy, s)
}

// parseRedirect accepts an absolute, header-safe path after the prefix.
func parseRedirect(s string) (string, bool) {
	raw, ok := strings.CutPrefix(s, redirectPrefix)
	if !ok || !strings.HasPrefix(raw, "/") {
		return "", false
	}
	for _, r := range raw {
		if r <= ' ' || r == 0x7f || r > '~' || r == '?' || r == '#' {
			return "", false
		}
	}
	return strings.Trim(raw, "/"), true
}

// OutcomeKind enumerates the possible responses.
type OutcomeKind int

const (
	ServeFile OutcomeKind = iota
	EmptyOK
	Redirect
	Forbidden
	ForwardToFallback
)

var outcomeNames = [...]string{
	ServeFile:         "serve_file",
	EmptyOK:           "empty",
	Redirect:          "redirect",
	Forbidden:         "forbidden",
	ForwardToFallback: "fallback",
}

func (k OutcomeKind) String() string {
	if int(k) < len(outcomeNames) {
		return outcomeNames[k]
	}
	return "unknown"
}

// Outcome is the response decided for a request.
type Outcome struct {
	Kind OutcomeKind
	// RedirectPath is the X-Accel-Redirect header value for Redirect.
	RedirectPath string
}

// Resolver holds the static response configuration.
type Resolver struct {
	OnAllow  OnAllow
	OnDeny   OnDeny
	Fallback bool
}

// Resolve decides the outcome for verdict on path.
func (r *Resolver) Resolve(verdict authz.Verdict, path request.Path) Outcome {
	if verdict == authz.Authorized {
		switch r.OnAllow.Kind {
		case AllowEmpty:
			return Outcome{Kind: EmptyOK}
		case AllowRedirect:
			return Outcome{Kind: Redirect, RedirectPath: redirectTarget(r.OnAllow.Path, path)}
		default:
			return Outcome{Kind: ServeFile}
		}
	}

	if r.Fallback {
		return Outcome{Kind: ForwardToFallback}
	}
	if r.OnDeny.Kind == DenyRedirect {
		return Outcome{Kind: Redirect, RedirectPath: redirectTarget(r.OnDeny.Path, path)}
	}
	return Outcome{Kind: Forbidden}
}

func redirectTarget(prefix string, path request.Path) string {
	if prefix == "" {
		return "/" + path.WithoutPrefix()
	}
	return "/" + prefix + "/" + path.WithoutPrefix()
}
