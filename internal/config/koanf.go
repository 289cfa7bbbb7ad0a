// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched when none is given.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/octoka/config.yaml",
	"/etc/octoka/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "OCTOKA_CONFIG_PATH"

// EnvPrefix is stripped from every environment variable octoka reads.
const EnvPrefix = "OCTOKA_"

func defaultConfig() *Config {
	return &Config{
		Opencast: OpencastConfig{
			DownloadsPath:   "",
			PathPrefixes:    []string{"/static"},
			Host:            "http://localhost:8080",
			Fallback:        false,
			FallbackTimeout: 30 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		JWT: JWTConfig{
			TrustedKeys: nil,
			Algorithms:  []string{"ES256", "ES384", "EdDSA"},
			Sources: []TokenSourceConfig{
				{Source: "header", Name: "Authorization", Prefix: "Bearer "},
				{Source: "query", Name: "jwt"},
			},
			KeyCacheDuration:      10 * time.Minute,
			RefreshInterval:       5 * time.Minute,
			FetchTimeout:          10 * time.Second,
			NegativeCacheDuration: 5 * time.Second,
			NegativeCacheSize:     1024,
			MissRefreshRate:       1,
			MissRefreshBurst:      5,
			AllowedClockSkew:      3 * time.Second,
			RequireExp:            true,
			AdminRole:             "ROLE_ADMIN",
		},
		HTTP: HTTPConfig{
			Address:            "127.0.0.1",
			Port:               4050,
			OnAllow:            "file",
			OnDeny:             "forbidden",
			CORSAllowedOrigins: []string{},
			ShutdownTimeout:    3 * time.Second,
			ReadHeaderTimeout:  10 * time.Second,
			RateLimitEnabled:   false,
			RateLimitRequests:  100,
			RateLimitWindow:    time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in configuration. It is not valid on its own:
// at least one trusted JWKS URL must be set.
func Default() *Config {
	return defaultConfig()
}

// DefaultYAML renders the built-in configuration as a YAML template.
func DefaultYAML() ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, fmt.Errorf("failed to render defaults: %w", err)
	}
	return out, nil
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. YAML file: explicitPath if non-empty, else OCTOKA_CONFIG_PATH, else DefaultConfigPaths
//  3. OCTOKA_* environment variables
//
// The result is validated before it is returned.
func LoadWithKoanf(explicitPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := explicitPath
	if configPath == "" {
		configPath = findConfigFile()
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"opencast.path_prefixes",
	"jwt.trusted_keys",
	"jwt.algorithms",
	"http.cors_allowed_origins",
}

// processSliceFields splits comma-separated strings set through the
// environment. Values loaded from YAML are already slices and left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps OCTOKA_-stripped, lowercased variable names to config paths.
var envMappings = map[string]string{
	"opencast_downloads_path":   "opencast.downloads_path",
	"opencast_path_prefixes":    "opencast.path_prefixes",
	"opencast_host":             "opencast.host",
	"opencast_fallback":         "opencast.fallback",
	"opencast_fallback_timeout": "opencast.fallback_timeout",
	"opencast_breaker_failures": "opencast.breaker_failures",
	"opencast_breaker_timeout":  "opencast.breaker_timeout",

	"jwt_trusted_keys":            "jwt.trusted_keys",
	"jwt_algorithms":              "jwt.algorithms",
	"jwt_key_cache_duration":      "jwt.key_cache_duration",
	"jwt_refresh_interval":        "jwt.refresh_interval",
	"jwt_fetch_timeout":           "jwt.fetch_timeout",
	"jwt_negative_cache_duration": "jwt.negative_cache_duration",
	"jwt_negative_cache_size":     "jwt.negative_cache_size",
	"jwt_miss_refresh_rate":       "jwt.miss_refresh_rate",
	"jwt_miss_refresh_burst":      "jwt.miss_refresh_burst",
	"jwt_allowed_clock_skew":      "jwt.allowed_clock_skew",
	"jwt_require_exp":             "jwt.require_exp",
	"jwt_admin_role":              "jwt.admin_role",

	"http_address":              "http.address",
	"http_port":                 "http.port",
	"http_on_allow":             "http.on_allow",
	"http_on_deny":              "http.on_deny",
	"http_cors_allowed_origins": "http.cors_allowed_origins",
	"http_shutdown_timeout":     "http.shutdown_timeout",
	"http_read_header_timeout":  "http.read_header_timeout",
	"http_rate_limit_enabled":   "http.rate_limit_enabled",
	"http_rate_limit_requests":  "http.rate_limit_requests",
	"http_rate_limit_window":    "http.rate_limit_window",

	"metrics_enabled": "metrics.enabled",
	"metrics_address": "metrics.address",
	"metrics_path":    "metrics.path",

	"logging_level":  "logging.level",
	"logging_format": "logging.format",
	"logging_caller": "logging.caller",
}

// envAliases are short names kept for container deployments.
var envAliases = map[string]string{
	"port":           "http.port",
	"jwks_url":       "jwt.trusted_keys",
	"downloads_path": "opencast.downloads_path",
	"log_level":      "logging.level",
	"log_format":     "logging.format",
}

// envTransformFunc maps environment variable names to koanf paths:
//
//	OCTOKA_HTTP_PORT         -> http.port
//	OCTOKA_JWT_TRUSTED_KEYS  -> jwt.trusted_keys
//	OCTOKA_LOG_LEVEL         -> logging.level
//
// Unknown names map to "" and are skipped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	if mapped, ok := envAliases[key]; ok {
		return mapped
	}
	return ""
}
