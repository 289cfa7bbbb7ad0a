// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/octoka/internal/api"
	"github.com/tomtom215/octoka/internal/authz"
	"github.com/tomtom215/octoka/internal/config"
	"github.com/tomtom215/octoka/internal/fallback"
	"github.com/tomtom215/octoka/internal/fileserve"
	"github.com/tomtom215/octoka/internal/keys"
	"github.com/tomtom215/octoka/internal/policy"
	"github.com/tomtom215/octoka/internal/request"
	"github.com/tomtom215/octoka/internal/token"
)

// app holds everything built from the configuration.
type app struct {
	cfg     *config.Config
	keys    *keys.Manager
	files   *fileserve.Server
	handler http.Handler
}

// build wires the components. Nothing is fetched or started here.
func build(cfg *config.Config) (*app, error) {
	manager, err := keys.NewManager(keys.Options{
		URLs:                  cfg.JWT.TrustedKeys,
		KeyCacheDuration:      cfg.JWT.KeyCacheDuration,
		FetchTimeout:          cfg.JWT.FetchTimeout,
		NegativeCacheDuration: cfg.JWT.NegativeCacheDuration,
		NegativeCacheSize:     cfg.JWT.NegativeCacheSize,
		MissRefreshRate:       cfg.JWT.MissRefreshRate,
		MissRefreshBurst:      cfg.JWT.MissRefreshBurst,
	}, keys.NewHTTPFetcher(nil, "octoka/"+version))
	if err != nil {
		return nil, err
	}

	verifier, err := token.NewVerifier(manager, token.Options{
		Algorithms: cfg.JWT.Algorithms,
		Leeway:     cfg.JWT.AllowedClockSkew,
		RequireExp: cfg.JWT.RequireExp,
	})
	if err != nil {
		return nil, err
	}

	sources := make([]request.TokenSource, 0, len(cfg.JWT.Sources))
	for _, s := range cfg.JWT.Sources {
		sources = append(sources, request.TokenSource{
			Kind:   request.SourceKind(s.Source),
			Name:   s.Name,
			Prefix: s.Prefix,
		})
	}
	classifier, err := request.NewClassifier(cfg.Opencast.PathPrefixes, sources)
	if err != nil {
		return nil, err
	}

	onAllow, err := policy.ParseOnAllow(cfg.HTTP.OnAllow)
	if err != nil {
		return nil, fmt.Errorf("http.on_allow: %w", err)
	}
	onDeny, err := policy.ParseOnDeny(cfg.HTTP.OnDeny)
	if err != nil {
		return nil, fmt.Errorf("http.on_deny: %w", err)
	}

	deps := api.Dependencies{
		Classifier: classifier,
		Verifier:   verifier,
		Authorizer: authz.New(cfg.JWT.AdminRole),
		Policy:     &policy.Resolver{OnAllow: onAllow, OnDeny: onDeny, Fallback: cfg.Opencast.Fallback},
		Keys:       manager,
		Version:    version,
	}

	if cfg.Opencast.DownloadsPath != "" {
		if deps.Files, err = fileserve.New(cfg.Opencast.DownloadsPath); err != nil {
			return nil, err
		}
	}

	if cfg.Opencast.Fallback {
		deps.Fallback, err = fallback.New(fallback.Options{
			Upstream:        cfg.Opencast.Host,
			Timeout:         cfg.Opencast.FallbackTimeout,
			EmptyOnSuccess:  onAllow.Kind == policy.AllowEmpty,
			BreakerFailures: cfg.Opencast.BreakerFailures,
			BreakerTimeout:  cfg.Opencast.BreakerTimeout,
		})
		if err != nil {
			return nil, err
		}
	}

	handler, err := api.NewHandler(deps)
	if err != nil {
		return nil, err
	}

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.HTTP.CORSAllowedOrigins
	mw.RateLimitDisabled = !cfg.HTTP.RateLimitEnabled
	mw.RateLimitRequests = cfg.HTTP.RateLimitRequests
	mw.RateLimitWindow = cfg.HTTP.RateLimitWindow

	return &app{
		cfg:     cfg,
		keys:    manager,
		files:   deps.Files,
		handler: api.NewRouter(handler, api.NewChiMiddleware(mw)),
	}, nil
}

// servers returns the public server and, if enabled, the metrics server.
func (a *app) servers() (public, metrics *http.Server) {
	public = &http.Server{
		Addr:              a.cfg.HTTP.ListenAddr(),
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: large media files stream for as long as the client reads.
	}
	if a.cfg.Metrics.Enabled {
		metrics = &http.Server{
			Addr:              a.cfg.Metrics.Address,
			Handler:           api.NewMetricsRouter(a.cfg.Metrics.Path),
			ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		}
	}
	return public, metrics
}
