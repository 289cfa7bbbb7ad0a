// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Package services adapts octoka's long-running components to suture.Service.

  - HTTPServerService: ListenAndServe with graceful Shutdown on cancel.
  - RefreshService: periodic JWKS refresh through a Refresher.

Every service implements fmt.Stringer so supervisor logs name it.
*/
package services
