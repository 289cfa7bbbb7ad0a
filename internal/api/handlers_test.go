// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package api

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/octoka/internal/authz"
	"github.com/tomtom215/octoka/internal/fallback"
	"github.com/tomtom215/octoka/internal/fileserve"
	"github.com/tomtom215/octoka/internal/keys"
	"github.com/tomtom215/octoka/internal/metrics"
	"github.com/tomtom215/octoka/internal/policy"
	"github.com/tomtom215/octoka/internal/request"
	"github.com/tomtom215/octoka/internal/token"
)

const (
	mediaBody = "0123456789 pretend this is a video"
	mediaPath = "/static/mh_default_org/engage-player/ev1/ab12/video.mp4"
	otherPath = "/static/mh_default_org/engage-player/ev2/cd34/secret.mp4"
)

// singleKey resolves every lookup to one ES256 key.
type singleKey struct{ key *keys.Key }

func (s singleKey) Resolve(_ context.Context, kid, alg string) ([]*keys.Key, error) {
	if kid != "" && kid != s.key.ID {
		return nil, keys.ErrKeyNotFound
	}
	if alg != s.key.Algorithm {
		return nil, keys.ErrAlgorithmMismatch
	}
	return []*keys.Key{s.key}, nil
}

type fakeKeyStatus struct{ healthy bool }

func (f fakeKeyStatus) Status() []keys.SourceStatus {
	n := 0
	if f.healthy {
		n = 2
	}
	return []keys.SourceStatus{{URL: "https://opencast.example/jwks.json", Keys: n}}
}

func (f fakeKeyStatus) Healthy() bool { return f.healthy }

type pipelineOptions struct {
	onAllow  string
	onDeny   string
	upstream string
	mw       *ChiMiddlewareConfig
}

type pipeline struct {
	router http.Handler
	signer *ecdsa.PrivateKey
}

func newPipeline(t *testing.T, opts pipelineOptions) *pipeline {
	t.Helper()

	root := t.TempDir()
	for rel, body := range map[string]string{
		"mh_default_org/engage-player/ev1/ab12/video.mp4":  mediaBody,
		"mh_default_org/engage-player/ev2/cd34/secret.mp4": "secret",
	} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	signer, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := token.NewVerifier(
		singleKey{key: &keys.Key{ID: "k1", Algorithm: "ES256", Public: &signer.PublicKey}},
		token.Options{Leeway: 3 * time.Second, RequireExp: true},
	)
	if err != nil {
		t.Fatal(err)
	}

	classifier, err := request.NewClassifier([]string{"/static"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if opts.onAllow == "" {
		opts.onAllow = "file"
	}
	if opts.onDeny == "" {
		opts.onDeny = "forbidden"
	}
	onAllow, err := policy.ParseOnAllow(opts.onAllow)
	if err != nil {
		t.Fatal(err)
	}
	onDeny, err := policy.ParseOnDeny(opts.onDeny)
	if err != nil {
		t.Fatal(err)
	}

	files, err := fileserve.New(root)
	if err != nil {
		t.Fatal(err)
	}

	deps := Dependencies{
		Classifier: classifier,
		Verifier:   verifier,
		Authorizer: authz.New(authz.DefaultAdminRole),
		Policy:     &policy.Resolver{OnAllow: onAllow, OnDeny: onDeny, Fallback: opts.upstream != ""},
		Files:      files,
		Keys:       fakeKeyStatus{healthy: true},
		Version:    "test",
	}
	if opts.upstream != "" {
		deps.Fallback, err = fallback.New(fallback.Options{
			Upstream:       opts.upstream,
			Timeout:        time.Second,
			EmptyOnSuccess: onAllow.Kind == policy.AllowEmpty,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	h, err := NewHandler(deps)
	if err != nil {
		t.Fatal(err)
	}
	return &pipeline{router: NewRouter(h, NewChiMiddleware(opts.mw)), signer: signer}
}

func (p *pipeline) token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(p.signer)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func (p *pipeline) do(method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	p.router.ServeHTTP(rec, req)
	return rec
}

func readerClaims(event string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "viewer",
		"exp": time.Now().Add(time.Hour).Unix(),
		"oc":  map[string][]string{"e:" + event: {"read"}},
	}
}

func adminClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": []string{"ROLE_ADMIN"},
	}
}

func bearer(raw string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + raw}
}

func TestServeMedia_DefaultPolicy(t *testing.T) {
	p := newPipeline(t, pipelineOptions{})

	reader := p.token(t, readerClaims("ev1"))
	expired := p.token(t, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
		"oc":  map[string][]string{"e:ev1": {"read"}},
	})
	writeOnly := p.token(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"oc":  map[string][]string{"e:ev1": {"write"}},
	})

	tests := []struct {
		name       string
		method     string
		target     string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{"reader of event", http.MethodGet, mediaPath, bearer(reader), http.StatusOK, mediaBody},
		{"admin", http.MethodGet, otherPath, bearer(p.token(t, adminClaims())), http.StatusOK, "secret"},
		{"token in query", http.MethodGet, mediaPath + "?jwt=" + reader, nil, http.StatusOK, mediaBody},
		{"reader of another event", http.MethodGet, otherPath, bearer(reader), http.StatusForbidden, "403 Forbidden"},
		{"write is not read", http.MethodGet, mediaPath, bearer(writeOnly), http.StatusForbidden, "403 Forbidden"},
		{"no token", http.MethodGet, mediaPath, nil, http.StatusForbidden, "403 Forbidden"},
		{"expired token", http.MethodGet, mediaPath, bearer(expired), http.StatusForbidden, "403 Forbidden"},
		{"garbage token", http.MethodGet, mediaPath, bearer("not.a.jwt"), http.StatusForbidden, "403 Forbidden"},
		{"missing prefix", http.MethodGet, "/other/mh_default_org/engage-player/ev1/ab12/video.mp4", bearer(reader), http.StatusBadRequest, "400 Bad Request"},
		{"too few segments", http.MethodGet, "/static/mh_default_org/engage-player/ev1", bearer(reader), http.StatusBadRequest, "400 Bad Request"},
		{"missing file", http.MethodGet, "/static/mh_default_org/engage-player/ev1/ab12/nope.mp4", bearer(reader), http.StatusNotFound, "404 Not Found"},
		{"escape into other event", http.MethodGet, "/static/mh_default_org/engage-player/ev1/..%2F..%2Fev2%2Fcd34%2Fsecret.mp4", bearer(reader), http.StatusForbidden, "403 Forbidden"},
		{"head", http.MethodHead, mediaPath, bearer(reader), http.StatusOK, ""},
		{"post", http.MethodPost, mediaPath, bearer(reader), http.StatusMethodNotAllowed, "405 Method Not Allowed"},
		{"delete", http.MethodDelete, mediaPath, nil, http.StatusMethodNotAllowed, "405 Method Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := p.do(tt.method, tt.target, tt.headers)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID header missing")
			}
		})
	}
}

func TestServeMedia_Range(t *testing.T) {
	p := newPipeline(t, pipelineOptions{})
	headers := bearer(p.token(t, readerClaims("ev1")))
	headers["Range"] = "bytes=0-9"

	rec := p.do(http.MethodGet, mediaPath, headers)
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Body.String(); got != mediaBody[:10] {
		t.Errorf("body = %q", got)
	}
	want := fmt.Sprintf("bytes 0-9/%d", len(mediaBody))
	if got := rec.Header().Get("Content-Range"); got != want {
		t.Errorf("Content-Range = %q, want %q", got, want)
	}

	headers["Range"] = "bytes=1000-"
	rec = p.do(http.MethodGet, mediaPath, headers)
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != fmt.Sprintf("bytes */%d", len(mediaBody)) {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeMedia_NotModified(t *testing.T) {
	p := newPipeline(t, pipelineOptions{})
	headers := bearer(p.token(t, readerClaims("ev1")))

	first := p.do(http.MethodGet, mediaPath, headers)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag on first response")
	}

	headers["If-None-Match"] = etag
	rec := p.do(http.MethodGet, mediaPath, headers)
	if rec.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 carried a body: %q", rec.Body.String())
	}
}

func TestServeMedia_ResponsePolicies(t *testing.T) {
	tests := []struct {
		name         string
		onAllow      string
		onDeny       string
		authorized   bool
		wantStatus   int
		wantRedirect string
		wantBody     string
	}{
		{"empty on allow", "empty", "forbidden", true, http.StatusOK, "", ""},
		{"redirect on allow", "x-accel-redirect:/protected", "forbidden", true, http.StatusNoContent,
			"/protected/mh_default_org/engage-player/ev1/ab12/video.mp4", ""},
		{"redirect on deny", "file", "x-accel-redirect:/denied/", false, http.StatusNoContent,
			"/denied/mh_default_org/engage-player/ev1/ab12/video.mp4", ""},
		{"forbidden on deny with redirect allow", "x-accel-redirect:/protected", "forbidden", false, http.StatusForbidden,
			"", "403 Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, pipelineOptions{onAllow: tt.onAllow, onDeny: tt.onDeny})
			var headers map[string]string
			if tt.authorized {
				headers = bearer(p.token(t, readerClaims("ev1")))
			}

			rec := p.do(http.MethodGet, mediaPath, headers)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("X-Accel-Redirect"); got != tt.wantRedirect {
				t.Errorf("X-Accel-Redirect = %q, want %q", got, tt.wantRedirect)
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestServeMedia_DotSegmentsForbidden(t *testing.T) {
	upstreamCalled := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		upstreamCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	targets := []string{
		"/static/mh_default_org/engage-player/ev1/../ev2/cd34/secret.mp4",
		"/static/mh_default_org/engage-player/ev1/ab12/%2e%2e/video.mp4",
		"/static/mh_default_org/engage-player/ev1%2F..%2Fev2/cd34/secret.mp4",
	}
	tests := []struct {
		name  string
		opts  pipelineOptions
		admin bool
	}{
		{"redirect on allow", pipelineOptions{onAllow: "x-accel-redirect:/protected"}, true},
		{"redirect on deny", pipelineOptions{onDeny: "x-accel-redirect:/denied"}, false},
		{"fallback", pipelineOptions{upstream: upstream.URL}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.opts)
			var headers map[string]string
			if tt.admin {
				headers = bearer(p.token(t, adminClaims()))
			}
			for _, target := range targets {
				upstreamCalled = false
				rec := p.do(http.MethodGet, target, headers)
				if rec.Code != http.StatusForbidden {
					t.Errorf("%s: status = %d, want 403", target, rec.Code)
				}
				if got := rec.Header().Get("X-Accel-Redirect"); got != "" {
					t.Errorf("%s: X-Accel-Redirect = %q", target, got)
				}
				if upstreamCalled {
					t.Errorf("%s: forwarded to fallback", target)
				}
			}
		})
	}
}

func TestServeMedia_Fallback(t *testing.T) {
	var gotPath, gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = io.WriteString(w, "from opencast")
	}))
	defer upstream.Close()

	p := newPipeline(t, pipelineOptions{upstream: upstream.URL})
	other := p.token(t, readerClaims("ev2"))

	t.Run("denied request is forwarded", func(t *testing.T) {
		rec := p.do(http.MethodGet, mediaPath+"?x=1", bearer(other))
		if rec.Code != http.StatusOK || rec.Body.String() != "from opencast" {
			t.Fatalf("got %d %q, want relayed upstream answer", rec.Code, rec.Body.String())
		}
		if gotPath != mediaPath+"?x=1" {
			t.Errorf("upstream saw %q", gotPath)
		}
		if gotAuth != "Bearer "+other {
			t.Errorf("upstream Authorization = %q", gotAuth)
		}
	})

	t.Run("authorized request is served locally", func(t *testing.T) {
		gotPath = ""
		rec := p.do(http.MethodGet, mediaPath, bearer(p.token(t, readerClaims("ev1"))))
		if rec.Body.String() != mediaBody {
			t.Fatalf("body = %q, want local file", rec.Body.String())
		}
		if gotPath != "" {
			t.Errorf("upstream was called for %q", gotPath)
		}
	})

	t.Run("path outside prefixes is forwarded", func(t *testing.T) {
		rec := p.do(http.MethodGet, "/engage/ui/index.html", nil)
		if rec.Code != http.StatusOK || gotPath != "/engage/ui/index.html" {
			t.Errorf("got %d, upstream saw %q", rec.Code, gotPath)
		}
	})
}

func TestServeMedia_FallbackEmptyOnSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "body that must not be relayed")
	}))
	defer upstream.Close()

	p := newPipeline(t, pipelineOptions{onAllow: "empty", upstream: upstream.URL})
	rec := p.do(http.MethodGet, mediaPath, nil)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("got %d %q, want empty 204", rec.Code, rec.Body.String())
	}
}

func TestOptions(t *testing.T) {
	p := newPipeline(t, pipelineOptions{})
	rec := p.do(http.MethodOptions, mediaPath, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, HEAD, OPTIONS" {
		t.Errorf("Allow = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS header set without configured origins: %q", got)
	}
}

func TestHealth(t *testing.T) {
	for _, healthy := range []bool{true, false} {
		t.Run(fmt.Sprintf("healthy=%t", healthy), func(t *testing.T) {
			handler := &Handler{keys: fakeKeyStatus{healthy: healthy}, version: "test", startTime: time.Now()}
			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))

			wantStatus, wantState := http.StatusOK, "healthy"
			if !healthy {
				wantStatus, wantState = http.StatusServiceUnavailable, "degraded"
			}
			if rec.Code != wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var body HealthStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != wantState || len(body.Sources) != 1 || body.Version != "test" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestHealth_Routed(t *testing.T) {
	p := newPipeline(t, pipelineOptions{})
	rec := p.do(http.MethodGet, HealthPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"jwks_sources"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServeMedia_Metrics(t *testing.T) {
	p := newPipeline(t, pipelineOptions{})

	forbidden := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("forbidden"))
	served := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("serve_file"))
	expired := testutil.ToFloat64(metrics.TokenRejections.WithLabelValues("expired"))
	bytes := testutil.ToFloat64(metrics.BytesServed)

	p.do(http.MethodGet, mediaPath, bearer(p.token(t, readerClaims("ev1"))))
	p.do(http.MethodGet, mediaPath, bearer(p.token(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})))

	if got := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("serve_file")) - served; got != 1 {
		t.Errorf("serve_file decisions += %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("forbidden")) - forbidden; got != 1 {
		t.Errorf("forbidden decisions += %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.TokenRejections.WithLabelValues("expired")) - expired; got != 1 {
		t.Errorf("expired rejections += %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.BytesServed) - bytes; got != float64(len(mediaBody)) {
		t.Errorf("bytes served += %v, want %d", got, len(mediaBody))
	}
}

func TestNewHandler_Validation(t *testing.T) {
	classifier, _ := request.NewClassifier([]string{"/static"}, nil)
	verifier, _ := token.NewVerifier(singleKey{key: &keys.Key{ID: "k", Algorithm: "ES256"}}, token.Options{})
	fileAllow, _ := policy.ParseOnAllow("file")
	emptyAllow, _ := policy.ParseOnAllow("empty")
	deny, _ := policy.ParseOnDeny("forbidden")

	base := func() Dependencies {
		return Dependencies{
			Classifier: classifier,
			Verifier:   verifier,
			Authorizer: authz.New(""),
			Policy:     &policy.Resolver{OnAllow: emptyAllow, OnDeny: deny},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Dependencies)
		wantErr bool
	}{
		{"complete", func(*Dependencies) {}, false},
		{"no classifier", func(d *Dependencies) { d.Classifier = nil }, true},
		{"no verifier", func(d *Dependencies) { d.Verifier = nil }, true},
		{"no authorizer", func(d *Dependencies) { d.Authorizer = nil }, true},
		{"no policy", func(d *Dependencies) { d.Policy = nil }, true},
		{"file policy without files", func(d *Dependencies) {
			d.Policy = &policy.Resolver{OnAllow: fileAllow, OnDeny: deny}
		}, true},
		{"fallback without dispatcher", func(d *Dependencies) {
			d.Policy = &policy.Resolver{OnAllow: emptyAllow, OnDeny: deny, Fallback: true}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := base()
			tt.mutate(&deps)
			_, err := NewHandler(deps)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewHandler() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
