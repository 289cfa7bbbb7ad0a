// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Package api is octoka's HTTP layer: the chi router, its middleware stack and
the handlers behind it.

Routes:

	GET       /-/health   JWKS source status as JSON (200 or 503)
	GET/HEAD  /*          media pipeline
	OPTIONS   /*          204 with Allow (CORS preflight headers when configured)
	other                 405

The media pipeline for a request:

 1. request.Classifier splits the path into prefix/org/channel/event/suffix.
    Paths outside the prefixes go to the fallback if enabled, else 400.
 2. The token is taken from the first configured source that has one.
 3. token.Verifier checks signature, algorithm and time claims. Any failure
    makes the request unauthenticated; the reason is logged at debug level
    and counted, never sent to the client.
 4. authz.Authorizer grants access to admins and to tokens whose oc claim
    lists "read" for e:<event-id>.
 5. policy.Resolver picks the response: serve the file, empty 200,
    X-Accel-Redirect, forward to Opencast, or 403.

Middleware, outermost first: request ID, panic recovery, Prometheus request
metrics, access log, go-chi/cors (only with allowed origins), go-chi/httprate
(only when enabled). Error bodies are "<code> <reason>" plain text.
*/
package api
