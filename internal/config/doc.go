// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Package config loads and validates octoka's configuration.

Configuration is layered with koanf:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file (--config, OCTOKA_CONFIG_PATH, or DefaultConfigPaths)
 3. Environment variables prefixed with OCTOKA_

# Sections

  - opencast: downloads root, path prefixes, fallback upstream
  - jwt: trusted JWKS URLs, accepted algorithms, key cache timings, token sources
  - http: listener, on_allow/on_deny policies, CORS, timeouts, rate limiting
  - metrics: optional Prometheus listener
  - logging: level, format, caller

# Environment Variables

Every leaf is reachable as OCTOKA_<SECTION>_<KEY>, for example
OCTOKA_HTTP_PORT=4050 or OCTOKA_JWT_TRUSTED_KEYS=https://a/jwks,https://b/jwks.
List values are comma separated. A handful of short aliases exist
(OCTOKA_PORT, OCTOKA_LOG_LEVEL, OCTOKA_JWKS_URL, ...); see envAliases.

The token source list (jwt.sources) is only configurable from the YAML file.

# Validation

Validate runs struct-tag validation through internal/validation and then the
cross-field checks that tags cannot express: the on_allow/on_deny grammar,
HTTPS-only JWKS URLs (loopback excepted) and the fallback upstream.
*/
package config
