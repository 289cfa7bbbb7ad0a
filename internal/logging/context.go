// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	eventKey
)

// GenerateRequestID returns a random UUID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID attaches the request ID that Ctx adds to entries.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithEvent attaches the Opencast event ID a request was classified as.
func ContextWithEvent(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventKey, eventID)
}

// EventFromContext returns the event ID, or "".
func EventFromContext(ctx context.Context) string {
	ev, _ := ctx.Value(eventKey).(string)
	return ev
}

// Ctx returns the global logger with request_id and event from ctx.
//
//	logging.Ctx(r.Context()).Debug().Msg("Token rejected")
func Ctx(ctx context.Context) *zerolog.Logger {
	c := current.Load().With()
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	if ev := EventFromContext(ctx); ev != "" {
		c = c.Str("event", ev)
	}
	l := c.Logger()
	return &l
}
