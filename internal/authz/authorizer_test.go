// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package authz

import (
	"slices"
	"testing"

	"github.com/tomtom215/octoka/internal/token"
)

func TestAuthorize(t *testing.T) {
	a := New("")

	tests := []struct {
		name    string
		claims  *token.Claims
		eventID string
		want    Verdict
	}{
		{name: "nil claims", claims: nil, eventID: "ev1", want: Unauthenticated},
		{name: "empty claims", claims: &token.Claims{}, eventID: "ev1", want: Unauthenticated},
		{
			name:    "admin",
			claims:  &token.Claims{Roles: []string{"ROLE_USER", "ROLE_ADMIN"}},
			eventID: "anything",
			want:    Authorized,
		},
		{
			name:    "event read",
			claims:  &token.Claims{OC: map[string][]string{"e:ev1": {"write", "read"}}},
			eventID: "ev1",
			want:    Authorized,
		},
		{
			name:    "other event",
			claims:  &token.Claims{OC: map[string][]string{"e:ev2": {"read"}}},
			eventID: "ev1",
			want:    Unauthenticated,
		},
		{
			name:    "write only",
			claims:  &token.Claims{OC: map[string][]string{"e:ev1": {"write"}}},
			eventID: "ev1",
			want:    Unauthenticated,
		},
		{
			name:    "series read does not grant event",
			claims:  &token.Claims{OC: map[string][]string{"s:ev1": {"read"}}},
			eventID: "ev1",
			want:    Unauthenticated,
		},
		{
			name:    "role names are case sensitive",
			claims:  &token.Claims{Roles: []string{"role_admin"}},
			eventID: "ev1",
			want:    Unauthenticated,
		},
		{
			name:    "empty event id",
			claims:  &token.Claims{OC: map[string][]string{"e:": {"read"}}},
			eventID: "",
			want:    Unauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Authorize(tt.claims, tt.eventID); got != tt.want {
				t.Errorf("Authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorize_CustomAdminRole(t *testing.T) {
	a := New("ROLE_MEDIA_ADMIN")
	if got := a.Authorize(&token.Claims{Roles: []string{"ROLE_ADMIN"}}, "ev1"); got != Unauthenticated {
		t.Errorf("default admin role accepted with custom role configured")
	}
	if !a.IsAdmin(&token.Claims{Roles: []string{"ROLE_MEDIA_ADMIN"}}) {
		t.Error("IsAdmin() = false for configured role")
	}
}

func TestReadableEvents(t *testing.T) {
	claims := &token.Claims{OC: map[string][]string{
		"e:b":      {"read"},
		"e:a":      {"read", "write"},
		"e:c":      {"write"},
		"s:series": {"read"},
		"p:list":   {"read"},
		"garbage":  {"read"},
	}}

	got := ReadableEvents(claims)
	if want := []string{"a", "b"}; !slices.Equal(got, want) {
		t.Errorf("ReadableEvents() = %v, want %v", got, want)
	}
	if ReadableEvents(nil) != nil {
		t.Error("ReadableEvents(nil) should be nil")
	}
}

func TestVerdictString(t *testing.T) {
	if Authorized.String() != "authorized" || Unauthenticated.String() != "unauthenticated" {
		t.Errorf("unexpected verdict strings %q %q", Authorized, Unauthenticated)
	}
}
