// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package config

import (
	"fmt"
	"os"

	"github.com/tomtom215/octoka/internal/policy"
	"github.com/tomtom215/octoka/internal/validation"
)

// Validate checks struct constraints first, then cross-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validatePolicies(); err != nil {
		return err
	}

	if err := c.validateOpencast(); err != nil {
		return err
	}

	return c.validateJWT()
}

func (c *Config) validatePolicies() error {
	onAllow, err := policy.ParseOnAllow(c.HTTP.OnAllow)
	if err != nil {
		return fmt.Errorf("http.on_allow: %w", err)
	}
	if _, err := policy.ParseOnDeny(c.HTTP.OnDeny); err != nil {
		return fmt.Errorf("http.on_deny: %w", err)
	}

	if onAllow.Kind == policy.AllowFile && c.Opencast.DownloadsPath == "" {
		return fmt.Errorf("opencast.downloads_path is required when http.on_allow = file")
	}
	return nil
}

func (c *Config) validateOpencast() error {
	if c.Opencast.DownloadsPath != "" {
		info, err := os.Stat(c.Opencast.DownloadsPath)
		if err != nil {
			return fmt.Errorf("opencast.downloads_path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("opencast.downloads_path %s is not a directory", c.Opencast.DownloadsPath)
		}
	}

	if !c.Opencast.Fallback {
		return nil
	}
	if c.Opencast.Host == "" {
		return fmt.Errorf("opencast.host is required when opencast.fallback = true")
	}
	return validateHTTPURL(c.Opencast.Host, "opencast.host")
}

func (c *Config) validateJWT() error {
	for i, raw := range c.JWT.TrustedKeys {
		if err := validateJWKSURL(raw); err != nil {
			return fmt.Errorf("jwt.trusted_keys[%d]: %w", i, err)
		}
	}

	for i, src := range c.JWT.Sources {
		if src.Source == "query" && src.Prefix != "" {
			return fmt.Errorf("jwt.sources[%d]: prefix is only allowed for header sources", i)
		}
	}
	return nil
}
