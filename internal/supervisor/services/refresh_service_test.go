// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(context.Context, ...string) error {
	c.calls.Add(1)
	return c.err
}

func TestRefreshService(t *testing.T) {
	var _ suture.Service = (*RefreshService)(nil)

	tests := []struct {
		name      string
		interval  time.Duration
		err       error
		wantCalls bool
	}{
		{"refreshes on interval", 10 * time.Millisecond, nil, true},
		{"keeps going after failures", 10 * time.Millisecond, errors.New("503"), true},
		{"disabled", 0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRefresher{err: tt.err}
			svc := NewRefreshService(r, tt.interval)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			err := svc.Serve(ctx)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
			}

			calls := r.calls.Load()
			if tt.wantCalls && calls < 2 {
				t.Errorf("Refresh calls = %d, want at least 2", calls)
			}
			if !tt.wantCalls && calls != 0 {
				t.Errorf("Refresh calls = %d, want 0", calls)
			}
		})
	}
}

func TestRefreshService_String(t *testing.T) {
	if got := NewRefreshService(&countingRefresher{}, time.Minute).String(); got != "jwks-refresh" {
		t.Errorf("String() = %q", got)
	}
}
