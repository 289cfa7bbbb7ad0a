// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/octoka/internal/authz"
	"github.com/tomtom215/octoka/internal/fallback"
	"github.com/tomtom215/octoka/internal/fileserve"
	"github.com/tomtom215/octoka/internal/keys"
	"github.com/tomtom215/octoka/internal/policy"
	"github.com/tomtom215/octoka/internal/request"
	"github.com/tomtom215/octoka/internal/token"
)

// TokenVerifier verifies a raw JWT. Satisfied by *token.Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*token.Claims, error)
}

// KeyStatus reports key source health. Satisfied by *keys.Manager.
type KeyStatus interface {
	Status() []keys.SourceStatus
	Healthy() bool
}

// Dependencies are the components the request pipeline is built from.
type Dependencies struct {
	Classifier *request.Classifier
	Verifier   TokenVerifier
	Authorizer *authz.Authorizer
	Policy     *policy.Resolver

	// Files is required when the allow policy is to serve files.
	Files *fileserve.Server
	// Fallback is required when Policy.Fallback is set.
	Fallback *fallback.Dispatcher

	Keys    KeyStatus
	Version string
}

// Handler serves every route of the public listener.
type Handler struct {
	classifier *request.Classifier
	verifier   TokenVerifier
	authorizer *authz.Authorizer
	policy     *policy.Resolver
	files      *fileserve.Server
	fallback   *fallback.Dispatcher
	keys       KeyStatus
	version    string
	startTime  time.Time
}

// NewHandler checks that deps are complete for the configured policy.
func NewHandler(deps Dependencies) (*Handler, error) {
	switch {
	case deps.Classifier == nil:
		return nil, errors.New("api: classifier is required")
	case deps.Verifier == nil:
		return nil, errors.New("api: token verifier is required")
	case deps.Authorizer == nil:
		return nil, errors.New("api: authorizer is required")
	case deps.Policy == nil:
		return nil, errors.New("api: response policy is required")
	case deps.Policy.OnAllow.Kind == policy.AllowFile && deps.Files == nil:
		return nil, errors.New("api: file server is required to serve files on allow")
	case deps.Policy.Fallback && deps.Fallback == nil:
		return nil, errors.New("api: fallback dispatcher is required when fallback is enabled")
	}

	return &Handler{
		classifier: deps.Classifier,
		verifier:   deps.Verifier,
		authorizer: deps.Authorizer,
		policy:     deps.Policy,
		files:      deps.Files,
		fallback:   deps.Fallback,
		keys:       deps.Keys,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}
