// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package fallback forwards requests octoka cannot authorize to Opencast,
// which stays the final authority: its status, headers and body are relayed
// as received.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/octoka/internal/logging"
	"github.com/tomtom215/octoka/internal/metrics"
	"github.com/tomtom215/octoka/internal/middleware"
)

const breakerName = "opencast-fallback"

var (
	// ErrUpstreamStatus marks 5xx answers so the breaker counts them.
	ErrUpstreamStatus = errors.New("upstream server error")

	// ErrHeaderTimeout means the upstream sent no response headers within
	// Options.Timeout.
	ErrHeaderTimeout = errors.New("upstream response header timeout")
)

// hopHeaders are connection-specific and never forwarded (RFC 9110 7.6.1).
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Options configures a Dispatcher.
type Options struct {
	// Upstream is the Opencast base URL, e.g. https://opencast.example.com.
	Upstream string
	// Timeout bounds the wait for the upstream's response headers. Relaying
	// the body is bounded only by the inbound request's context.
	Timeout time.Duration
	// EmptyOnSuccess answers 2xx upstream responses with an empty 204.
	EmptyOnSuccess bool
	// BreakerFailures consecutive failures open the breaker for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// Client defaults to a client without redirects.
	Client *http.Client
}

// Dispatcher forwards requests to the upstream behind a circuit breaker.
type Dispatcher struct {
	upstream       *url.URL
	client         *http.Client
	breaker        *gobreaker.CircuitBreaker[*http.Response]
	timeout        time.Duration
	emptyOnSuccess bool
}

// New validates opts and builds a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	u, err := url.Parse(opts.Upstream)
	if err != nil {
		return nil, fmt.Errorf("fallback: parse upstream: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("fallback: upstream %q must be an absolute http(s) URL", opts.Upstream)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			// Redirects are part of the relayed response.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}

	return &Dispatcher{
		upstream:       u,
		client:         client,
		breaker:        newBreaker(opts.BreakerFailures, opts.BreakerTimeout),
		timeout:        opts.Timeout,
		emptyOnSuccess: opts.EmptyOnSuccess,
	}, nil
}

func newBreaker(failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[*http.Response] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= failures
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening fallback circuit")
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			// A cancelled client is not the upstream's fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
}

// Forward sends r to the upstream and writes its answer to w. The returned
// status is what the client received.
func (d *Dispatcher) Forward(w http.ResponseWriter, r *http.Request) int {
	start := time.Now()
	ctx, cancel := context.WithCancelCause(r.Context())
	defer cancel(nil)
	headerTimer := time.AfterFunc(d.timeout, func() { cancel(ErrHeaderTimeout) })
	defer headerTimer.Stop()

	log := logging.Ctx(r.Context())

	resp, err := d.breaker.Execute(func() (*http.Response, error) {
		out, err := d.outbound(ctx, r)
		if err != nil {
			return nil, err
		}
		resp, err := d.client.Do(out)
		if !headerTimer.Stop() && errors.Is(context.Cause(ctx), ErrHeaderTimeout) {
			if resp != nil {
				_ = resp.Body.Close()
			}
			return nil, fmt.Errorf("%w after %s", ErrHeaderTimeout, d.timeout)
		}
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
		}
		return resp, nil
	})
	d.recordBreaker(err)

	if resp == nil {
		status := http.StatusBadGateway
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status, result = http.StatusServiceUnavailable, "rejected"
			log.Warn().Err(err).Msg("[CIRCUIT BREAKER] Fallback request rejected")
		} else {
			log.Debug().Err(err).Msg("Forwarding to Opencast failed")
		}
		metrics.RecordFallback(result, time.Since(start))
		middleware.WriteError(w, status)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug().Int("status", resp.StatusCode).Msg("Got fallback response")

	if d.emptyOnSuccess && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		metrics.RecordFallback("empty", time.Since(start))
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Debug().Err(err).Msg("Relaying fallback body aborted")
		}
	}
	metrics.RecordFallback("relayed", time.Since(start))
	return resp.StatusCode
}

// outbound builds the upstream request: same method, path and query, end-to-end
// headers only.
func (d *Dispatcher) outbound(ctx context.Context, r *http.Request) (*http.Request, error) {
	target := *d.upstream
	target.Path = d.upstream.Path + r.URL.Path
	target.RawPath = ""
	if r.URL.RawPath != "" {
		target.RawPath = d.upstream.EscapedPath() + r.URL.RawPath
	}
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build fallback request: %w", err)
	}
	copyHeaders(out.Header, r.Header)

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			host = prior + ", " + host
		}
		out.Header.Set("X-Forwarded-For", host)
	}
	if r.Host != "" {
		out.Header.Set("X-Forwarded-Host", r.Host)
	}
	return out, nil
}

func (d *Dispatcher) recordBreaker(err error) {
	if err == nil {
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)
		return
	}
	counts := d.breaker.Counts()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(float64(counts.ConsecutiveFailures))
}

// State returns the breaker state name.
func (d *Dispatcher) State() string {
	return stateToString(d.breaker.State())
}

// copyHeaders copies src to dst without hop-by-hop headers, including those
// named in src's Connection header.
func copyHeaders(dst, src http.Header) {
	skip := make(map[string]bool, len(hopHeaders))
	for _, h := range hopHeaders {
		skip[h] = true
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				skip[http.CanonicalHeaderKey(name)] = true
			}
		}
	}
	for k, vv := range src {
		if skip[k] {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
