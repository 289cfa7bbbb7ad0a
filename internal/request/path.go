// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package request classifies incoming request paths into the Opencast
// static-file shape and extracts the bearer token.
//
//	/static/mh_default_org/engage-player/eb4f3b14-3953-4c17-957d-6e4c5868206b/ab12/video.mp4
//	 prefix org            channel       event id                             suffix
package request

import (
	"net/url"
	"strings"
)

// Path is a request path split into its Opencast components.
// Prefix and Suffix may contain slashes; Org, Channel and EventID never do.
// Suffix is kept exactly as it appeared on the wire (still percent-encoded).
type Path struct {
	Prefix  string
	Org     string
	Channel string
	EventID string
	Suffix  string
}

// WithoutPrefix returns org/channel/event/suffix without a leading slash.
// This is the file's location relative to the downloads directory.
func (p Path) WithoutPrefix() string {
	return p.Org + "/" + p.Channel + "/" + p.EventID + "/" + p.Suffix
}

// EventDir returns org/channel/event, the directory holding all of the event's files.
func (p Path) EventDir() string {
	return p.Org + "/" + p.Channel + "/" + p.EventID
}

// String returns the full path including the prefix.
func (p Path) String() string {
	return "/" + p.Prefix + "/" + p.WithoutPrefix()
}

// HasDotSegments reports whether any component, once percent-decoded,
// contains a "." or ".." segment, or whether org, channel or event decode to
// something with a slash in it. Such paths are refused whatever the token
// says. Undecodable components are left to the file server to reject.
func (p Path) HasDotSegments() bool {
	for i, raw := range [4]string{p.Org, p.Channel, p.EventID, p.Suffix} {
		dec, err := url.PathUnescape(raw)
		if err != nil {
			continue
		}
		if i < 3 && strings.ContainsRune(dec, '/') {
			return true
		}
		for _, seg := range strings.Split(dec, "/") {
			if seg == "." || seg == ".." {
				return true
			}
		}
	}
	return false
}

// splitPath splits path using the first prefix in prefixes it starts with.
// Prefixes are compared without leading and trailing slashes and must end at
// a segment boundary.
func splitPath(path string, prefixes []string) (Path, bool) {
	if !strings.HasPrefix(path, "/") {
		return Path{}, false
	}
	rest := path[1:]

	for _, raw := range prefixes {
		prefix := strings.Trim(raw, "/")
		if prefix == "" {
			continue
		}
		after, ok := strings.CutPrefix(rest, prefix+"/")
		if !ok {
			continue
		}
		return splitComponents(prefix, after)
	}
	return Path{}, false
}

func splitComponents(prefix, rest string) (Path, bool) {
	org, rest, ok := strings.Cut(rest, "/")
	if !ok || org == "" {
		return Path{}, false
	}
	channel, rest, ok := strings.Cut(rest, "/")
	if !ok || channel == "" {
		return Path{}, false
	}
	eventID, suffix, ok := strings.Cut(rest, "/")
	if !ok || eventID == "" || suffix == "" {
		return Path{}, false
	}

	return Path{
		Prefix:  prefix,
		Org:     org,
		Channel: channel,
		EventID: eventID,
		Suffix:  suffix,
	}, true
}
