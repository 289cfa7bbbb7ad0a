// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

/*
Package fileserve streams files from the Opencast downloads directory.

A request path org/channel/event/suffix is percent-decoded and joined onto the
downloads root. The result must stay inside the event directory after symlink
resolution; anything else fails with ErrPathTraversal regardless of the
authorization outcome.

Supported HTTP features:

  - strong ETag derived from size and modification time
  - If-None-Match (takes precedence) and If-Modified-Since, answered with 304
  - a single byte range (bytes=a-b, a-, -n) answered with 206; multiple
    ranges degrade to the full file; unsatisfiable ranges get 416
  - HEAD
  - Content-Type by extension, else by content sniffing

Bodies are streamed through a fixed 64 KiB buffer. A client disconnect stops
reading at the next buffer boundary; the file is closed on every path.
*/
package fileserve
