// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleSection struct {
	Prefixes   []string `koanf:"path_prefixes" validate:"min=1,dive,urlpath"`
	Algorithms []string `koanf:"algorithms" validate:"min=1,dive,jwtalg"`
	Mode       string   `koanf:"mode" validate:"oneof=json console"`
}

type sampleConfig struct {
	Section sampleSection `koanf:"section"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	cfg := sampleConfig{Section: sampleSection{
		Prefixes:   []string{"/static", "/media/protected"},
		Algorithms: []string{"ES256", "EdDSA"},
		Mode:       "json",
	}}
	if err := ValidateStruct(&cfg); err != nil {
		t.Fatalf("ValidateStruct() unexpected error: %v", err)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		cfg       sampleConfig
		wantField string
		wantTag   string
	}{
		{
			name: "prefix without slash",
			cfg: sampleConfig{Section: sampleSection{
				Prefixes: []string{"static"}, Algorithms: []string{"ES256"}, Mode: "json",
			}},
			wantField: "section.path_prefixes[0]",
			wantTag:   "urlpath",
		},
		{
			name: "symmetric algorithm",
			cfg: sampleConfig{Section: sampleSection{
				Prefixes: []string{"/static"}, Algorithms: []string{"HS256"}, Mode: "json",
			}},
			wantField: "section.algorithms[0]",
			wantTag:   "jwtalg",
		},
		{
			name: "none algorithm",
			cfg: sampleConfig{Section: sampleSection{
				Prefixes: []string{"/static"}, Algorithms: []string{"none"}, Mode: "json",
			}},
			wantField: "section.algorithms[0]",
			wantTag:   "jwtalg",
		},
		{
			name: "no prefixes",
			cfg: sampleConfig{Section: sampleSection{
				Algorithms: []string{"ES256"}, Mode: "json",
			}},
			wantField: "section.path_prefixes",
			wantTag:   "min",
		},
		{
			name: "bad oneof",
			cfg: sampleConfig{Section: sampleSection{
				Prefixes: []string{"/static"}, Algorithms: []string{"ES256"}, Mode: "xml",
			}},
			wantField: "section.mode",
			wantTag:   "oneof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs *Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected *Errors, got %T", err)
			}
			fields := verrs.Fields()
			if len(fields) != 1 {
				t.Fatalf("expected 1 field error, got %d: %v", len(fields), err)
			}
			if fields[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", fields[0].Field(), tt.wantField)
			}
			if fields[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", fields[0].Tag(), tt.wantTag)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("message %q should name the field", err.Error())
			}
		})
	}
}
