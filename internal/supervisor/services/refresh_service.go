// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package services

import (
	"context"
	"time"

	"github.com/tomtom215/octoka/internal/logging"
)

// Refresher reloads key sets. With no urls every source is refreshed.
// Satisfied by *keys.Manager.
type Refresher interface {
	Refresh(ctx context.Context, urls ...string) error
}

// RefreshService refreshes all JWKS sources on a fixed interval.
//
// Refresh failures are logged and the loop continues: a source that cannot
// be fetched keeps serving its previous keys, so there is nothing for the
// supervisor to restart.
type RefreshService struct {
	refresher Refresher
	interval  time.Duration
	name      string
}

// NewRefreshService creates the service. An interval <= 0 disables the
// periodic refresh; Serve then just waits for shutdown.
func NewRefreshService(refresher Refresher, interval time.Duration) *RefreshService {
	return &RefreshService{
		refresher: refresher,
		interval:  interval,
		name:      "jwks-refresh",
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	log := logging.WithComponent("jwks-refresh")

	if s.interval <= 0 {
		log.Info().Msg("Periodic JWKS refresh disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.refresher.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Msg("JWKS refresh failed for some sources")
				continue
			}
			log.Debug().Dur("duration", time.Since(start)).Msg("JWKS refreshed")
		}
	}
}

// String implements fmt.Stringer.
func (s *RefreshService) String() string {
	return s.name
}
