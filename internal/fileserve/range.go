// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package fileserve

import (
	"strconv"
	"strings"
)

type byteRange struct {
	start, length int64
	unsatisfiable bool
}

// parseRange interprets a Range header against a file of size bytes. ok is
// false when the full file should be served: no header, a syntax error, a
// unit other than bytes, or more than one range.
func parseRange(header string, size int64) (byteRange, bool) {
	ranges, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return byteRange{}, false
	}
	ranges = strings.TrimSpace(ranges)
	if ranges == "" || strings.Contains(ranges, ",") {
		return byteRange{}, false
	}

	first, last, found := strings.Cut(ranges, "-")
	if !found {
		return byteRange{}, false
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		// Suffix form: the last n bytes.
		n, err := parseOffset(last)
		if err != nil {
			return byteRange{}, false
		}
		if n == 0 || size == 0 {
			return byteRange{unsatisfiable: true}, true
		}
		n = min(n, size)
		return byteRange{start: size - n, length: n}, true
	}

	start, err := parseOffset(first)
	if err != nil {
		return byteRange{}, false
	}
	end := size - 1
	if last != "" {
		end, err = parseOffset(last)
		if err != nil || end < start {
			return byteRange{}, false
		}
	}
	if start >= size {
		return byteRange{unsatisfiable: true}, true
	}
	end = min(end, size-1)
	return byteRange{start: start, length: end - start + 1}, true
}

func parseOffset(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}
