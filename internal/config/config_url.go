// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validateHTTPURL validates a base URL: http/https scheme, host present,
// no path beyond "/", no query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// validateJWKSURL accepts HTTPS URLs, or HTTP for localhost and loopback
// addresses. User info and fragments are rejected.
func validateJWKSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("must have a host")
	}
	if parsedURL.User != nil {
		return fmt.Errorf("must not contain user info")
	}
	if strings.Contains(rawURL, "#") {
		return fmt.Errorf("must not contain a fragment (#...)")
	}

	switch parsedURL.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopbackHost(parsedURL.Hostname()) {
			return nil
		}
		return fmt.Errorf("must use https for non-local host %s", parsedURL.Hostname())
	default:
		return fmt.Errorf("scheme must be https, got: %s", parsedURL.Scheme)
	}
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
