// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package fileserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tomtom215/octoka/internal/logging"
	"github.com/tomtom215/octoka/internal/request"
)

const (
	bufferSize = 64 << 10
	sniffLen   = 3072
)

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// Meta describes the observable state of a file.
type Meta struct {
	Size    int64
	ModTime time.Time
	ETag    string
}

// MetaOf builds Meta from file info. The ETag changes whenever size or
// modification time do.
func MetaOf(info fs.FileInfo) Meta {
	return Meta{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		ETag:    `"` + strconv.FormatInt(info.Size(), 16) + "-" + strconv.FormatInt(info.ModTime().UnixNano(), 16) + `"`,
	}
}

// Server serves files below a root directory.
type Server struct {
	root string
}

// New returns a Server for root, which must be an existing directory.
// Symlinks in root itself are resolved once here.
func New(root string) (*Server, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fileserve: resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("fileserve: resolve root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("fileserve: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fileserve: root %s is not a directory", resolved)
	}
	return &Server{root: resolved}, nil
}

// Root returns the resolved root directory.
func (s *Server) Root() string { return s.root }

// Resolve maps p to a filesystem path inside its event directory.
func (s *Server) Resolve(p request.Path) (string, error) {
	segs := [4]string{p.Org, p.Channel, p.EventID, p.Suffix}
	for i, seg := range segs {
		dec, err := url.PathUnescape(seg)
		if err != nil || dec == "" || strings.ContainsRune(dec, 0) {
			return "", fmt.Errorf("%w: %q", ErrBadPath, seg)
		}
		segs[i] = dec
	}

	eventDir := filepath.Join(s.root, segs[0], segs[1], segs[2])
	full := filepath.Join(eventDir, filepath.FromSlash(segs[3]))
	if !within(s.root, eventDir) || !within(eventDir, full) {
		return "", ErrPathTraversal
	}

	realEvent, err := filepath.EvalSymlinks(eventDir)
	if err != nil {
		return "", classifyFSError("resolve", eventDir, err)
	}
	realFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", classifyFSError("resolve", full, err)
	}
	if !within(s.root, realEvent) || !within(realEvent, realFull) {
		return "", ErrPathTraversal
	}
	return realFull, nil
}

// within reports whether p is strictly below base.
func within(base, p string) bool {
	return strings.HasPrefix(p, base+string(filepath.Separator))
}

func classifyFSError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrInvalid):
		return fmt.Errorf("%w: %s", ErrBadPath, path)
	default:
		return &StorageError{Op: op, Path: path, Err: err}
	}
}

// Serve writes the response for the file at p. On an error returned before
// anything was written the caller chooses the status via StatusOf; for
// ErrRangeNotSatisfiable the Content-Range header is already set. Errors
// wrapping ErrAborted happen mid-body and must not be answered again.
// The returned count is the number of body bytes written.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, p request.Path) (int64, error) {
	path, err := s.Resolve(p)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, classifyFSError("open", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, classifyFSError("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	meta := MetaOf(info)

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("ETag", meta.ETag)
	h.Set("Last-Modified", meta.ModTime.UTC().Format(http.TimeFormat))

	if notModified(r, meta) {
		w.WriteHeader(http.StatusNotModified)
		return 0, nil
	}

	start, length, status := int64(0), meta.Size, http.StatusOK
	if rng, ok := parseRange(r.Header.Get("Range"), meta.Size); ok {
		if rng.unsatisfiable {
			h.Del("ETag")
			h.Del("Last-Modified")
			h.Set("Content-Range", "bytes */"+strconv.FormatInt(meta.Size, 10))
			return 0, ErrRangeNotSatisfiable
		}
		start, length, status = rng.start, rng.length, http.StatusPartialContent
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, meta.Size))
	}

	ctype, err := contentType(f, path)
	if err != nil {
		return 0, classifyFSError("read", path, err)
	}
	h.Set("Content-Type", ctype)
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead || length == 0 {
		return 0, nil
	}

	buf := bufPool.Get().(*[]byte)
	defer bufPool.Put(buf)

	body := &ctxReader{ctx: r.Context(), r: io.NewSectionReader(f, start, length)}
	// The wrapper hides ReaderFrom so the bounded buffer is used.
	n, err := io.CopyBuffer(struct{ io.Writer }{w}, body, *buf)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).
			Str("file", path).
			Int64("written", n).
			Int64("expected", length).
			Msg("File stream aborted")
		return n, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return n, nil
}

// notModified evaluates If-None-Match, falling back to If-Modified-Since
// only when no If-None-Match is present.
func notModified(r *http.Request, meta Meta) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return etagMatches(inm, meta.ETag)
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		t, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		return !meta.ModTime.Truncate(time.Second).After(t)
	}
	return false
}

// etagMatches uses weak comparison over a comma-separated list.
func etagMatches(header, etag string) bool {
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}

func contentType(f *os.File, path string) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct, nil
	}
	head := make([]byte, sniffLen)
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return mimetype.Detect(head[:n]).String(), nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
