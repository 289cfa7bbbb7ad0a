// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package fileserve

import "mime"

// mediaTypes are the extensions Opencast publishes. Registering them keeps
// Content-Type independent of the host's mime.types.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".m4a":  "audio/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".mpd":  "application/dash+xml",
	".vtt":  "text/vtt",
	".srt":  "application/x-subrip",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
}

//nolint:gochecknoinits // types must be registered before the first request
func init() {
	for ext, typ := range mediaTypes {
		_ = mime.AddExtensionType(ext, typ)
	}
}
