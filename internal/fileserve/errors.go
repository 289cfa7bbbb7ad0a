// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package fileserve

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPathTraversal means the resolved file lies outside its event directory.
	ErrPathTraversal = errors.New("path escapes the event directory")
	// ErrNotFound covers missing files and directories.
	ErrNotFound = errors.New("file not found")
	// ErrBadPath is an undecodable or otherwise unusable path.
	ErrBadPath = errors.New("invalid file path")
	// ErrRangeNotSatisfiable is returned when no byte of the range exists.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	// ErrAborted wraps failures after the response headers were sent.
	ErrAborted = errors.New("response aborted")
)

// StorageError is a filesystem failure other than a missing file, such as
// permission denied. It is a server-side problem.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StatusOf maps a Serve error to the HTTP status to reply with. It must not
// be used for errors wrapping ErrAborted.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPathTraversal):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadPath):
		return http.StatusBadRequest
	case errors.Is(err, ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}
