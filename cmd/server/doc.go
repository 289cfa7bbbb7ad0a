// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Command server runs octoka, a static file server for Opencast that decides
access from signed JWTs instead of asking Opencast.

Usage:

	octoka [--config path] [--check] [--gen-config] [--version]

	--config, -c   YAML config file; otherwise $OCTOKA_CONFIG_PATH,
	               ./config.yaml or /etc/octoka/config.yaml
	--check        load config, fetch every JWKS, verify the downloads
	               directory, then exit (non-zero on failure)
	--gen-config   print a YAML template of every setting with its default
	--version, -v  print the version

Every setting can also be given as an OCTOKA_* environment variable, e.g.
OCTOKA_JWT_TRUSTED_KEYS=https://opencast.example.com/api/jwks.

Startup order:

 1. Configuration: koanf (defaults, YAML file, environment), validated
 2. Logging: zerolog, level and format from config
 3. Components: key manager, verifier, classifier, policy, file server,
    fallback dispatcher, chi router
 4. Initial JWKS fetch; failing sources are logged and retried later
 5. Supervisor tree:

	octoka
	├── keys-layer
	│   └── jwks-refresh
	└── api-layer
	    ├── http-server
	    └── metrics-server (if metrics.enabled)

SIGINT or SIGTERM cancels the tree; listeners get http.shutdown_timeout to
finish in-flight requests.
*/
package main
