// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Opencast OpencastConfig `koanf:"opencast"`
	JWT      JWTConfig      `koanf:"jwt"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// OpencastConfig describes the Opencast installation octoka fronts.
type OpencastConfig struct {
	// DownloadsPath is the Opencast downloads/ directory files are served from.
	DownloadsPath string `koanf:"downloads_path"`

	// PathPrefixes are the URL prefixes handled by octoka, first match wins.
	// Corresponds to org.opencastproject.download.url.
	PathPrefixes []string `koanf:"path_prefixes" validate:"min=1,unique,dive,urlpath"`

	// Host is the Opencast base URL that denied requests are forwarded to.
	Host string `koanf:"host" validate:"omitempty,url"`

	// Fallback forwards every request octoka cannot authorize to Host.
	Fallback bool `koanf:"fallback"`

	FallbackTimeout time.Duration `koanf:"fallback_timeout" validate:"gt=0"`

	// BreakerFailures consecutive upstream failures open the circuit breaker.
	BreakerFailures uint32 `koanf:"breaker_failures" validate:"gte=1"`

	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// JWTConfig configures token verification and key management.
type JWTConfig struct {
	// TrustedKeys are JWKS URLs whose keys may sign tokens.
	TrustedKeys []string `koanf:"trusted_keys" validate:"min=1,unique,dive,url"`

	Algorithms []string `koanf:"algorithms" validate:"min=1,unique,dive,jwtalg"`

	// Sources lists where tokens are looked for, in priority order.
	Sources []TokenSourceConfig `koanf:"sources" validate:"min=1,dive"`

	// KeyCacheDuration is how long fetched keys count as fresh. Stale sources
	// are refreshed before use; their keys stay usable if the refresh fails.
	KeyCacheDuration time.Duration `koanf:"key_cache_duration" validate:"gt=0"`

	// RefreshInterval drives the background refresh. 0 disables it.
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gte=0"`

	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`

	// NegativeCacheDuration suppresses refreshes for a kid that just missed.
	NegativeCacheDuration time.Duration `koanf:"negative_cache_duration" validate:"gte=0"`
	NegativeCacheSize     int           `koanf:"negative_cache_size" validate:"gte=1"`

	// MissRefreshRate bounds miss-triggered refreshes per second across all kids.
	MissRefreshRate  float64 `koanf:"miss_refresh_rate" validate:"gt=0"`
	MissRefreshBurst int     `koanf:"miss_refresh_burst" validate:"gte=1"`

	AllowedClockSkew time.Duration `koanf:"allowed_clock_skew" validate:"gte=0"`

	// RequireExp rejects tokens without an exp claim.
	RequireExp bool `koanf:"require_exp"`

	AdminRole string `koanf:"admin_role" validate:"required"`
}

// TokenSourceConfig is one place a token may be carried in a request.
type TokenSourceConfig struct {
	Source string `koanf:"source" validate:"oneof=header query"`
	Name   string `koanf:"name" validate:"required"`
	// Prefix is stripped from header values (e.g. "Bearer ").
	Prefix string `koanf:"prefix"`
}

// HTTPConfig configures the public listener and response policies.
type HTTPConfig struct {
	Address string `koanf:"address" validate:"required,ip"`
	Port    int    `koanf:"port" validate:"gte=1,lte=65535"`

	// OnAllow is one of file, empty or x-accel-redirect:<path>.
	OnAllow string `koanf:"on_allow" validate:"required"`
	// OnDeny is one of forbidden or x-accel-redirect:<path>.
	OnDeny string `koanf:"on_deny" validate:"required"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`

	RateLimitEnabled  bool          `koanf:"rate_limit_enabled"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// ListenAddr returns address:port for net.Listen.
func (h *HTTPConfig) ListenAddr() string {
	return net.JoinHostPort(h.Address, strconv.Itoa(h.Port))
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address" validate:"required,hostname_port"`
	Path    string `koanf:"path" validate:"required,urlpath"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// String gives a one-line summary for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("listen=%s prefixes=%v jwks=%d on_allow=%s on_deny=%s fallback=%t",
		c.HTTP.ListenAddr(), c.Opencast.PathPrefixes, len(c.JWT.TrustedKeys),
		c.HTTP.OnAllow, c.HTTP.OnDeny, c.Opencast.Fallback)
}
