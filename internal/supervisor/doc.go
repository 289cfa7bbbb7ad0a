// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Package supervisor provides process supervision for octoka using suture v4.

The tree has two layers so that a failure in one does not restart the other:

	RootSupervisor ("octoka")
	├── KeysSupervisor ("keys-layer")
	│   └── RefreshService (periodic JWKS refresh)
	└── APISupervisor ("api-layer")
	    ├── HTTPServerService ("http-server")
	    └── HTTPServerService ("metrics-server", if metrics.enabled)

Supervisor events (start, failure, backoff) are logged through sutureslog,
which main bridges to zerolog with logging.NewSlogLogger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddKeysService(services.NewRefreshService(manager, cfg.JWT.RefreshInterval))
	tree.AddAPIService(services.NewHTTPServerService("http-server", server, cfg.HTTP.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)

# Failure Handling

Failures are counted with exponential decay (FailureDecay seconds). Once the
count exceeds FailureThreshold the supervisor waits FailureBackoff before the
next restart. A service that returns nil is not restarted.

If services do not stop within ShutdownTimeout, UnstoppedServiceReport lists
them.
*/
package supervisor
