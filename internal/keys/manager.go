// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package keys

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/octoka/internal/cache"
	"github.com/tomtom215/octoka/internal/logging"
	"github.com/tomtom215/octoka/internal/metrics"
)

var errNoUsableKeys = errors.New("JWKS contains no usable keys")

// Options configures a Manager.
type Options struct {
	// URLs are the trusted JWKS sources.
	URLs []string

	// KeyCacheDuration after which a source is refreshed before its keys are used.
	KeyCacheDuration time.Duration

	// FetchTimeout bounds a single JWKS fetch.
	FetchTimeout time.Duration

	// NegativeCacheDuration suppresses repeated refreshes for a key ID that
	// could not be found. 0 disables the negative cache.
	NegativeCacheDuration time.Duration
	NegativeCacheSize     int

	// MissRefreshRate and MissRefreshBurst limit refreshes triggered by
	// unknown key IDs, across all IDs.
	MissRefreshRate  float64
	MissRefreshBurst int

	// RetryInterval is the minimum spacing between refresh attempts for a
	// stale source whose last fetch failed.
	RetryInterval time.Duration

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.KeyCacheDuration <= 0 {
		o.KeyCacheDuration = 10 * time.Minute
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.NegativeCacheSize <= 0 {
		o.NegativeCacheSize = 1024
	}
	if o.MissRefreshRate <= 0 {
		o.MissRefreshRate = 1
	}
	if o.MissRefreshBurst <= 0 {
		o.MissRefreshBurst = 5
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// source is one JWKS URL and its current snapshot.
type source struct {
	url  string
	keys atomic.Pointer[keySet]

	mu          sync.Mutex
	lastAttempt time.Time
	lastErr     error
}

func (s *source) attempt() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAttempt, s.lastErr
}

// SourceStatus is a point-in-time view of one source, for health reporting.
type SourceStatus struct {
	URL         string     `json:"url"`
	Keys        int        `json:"keys"`
	LastFetch   *time.Time `json:"last_fetch,omitempty"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Stale       bool       `json:"stale"`
}

// Manager owns the key material of every configured source.
type Manager struct {
	opts    Options
	fetcher Fetcher
	sources []*source

	// flights collapses concurrent refreshes per source URL.
	flights singleflight.Group
	// missFlight collapses concurrent miss-triggered refresh rounds.
	missFlight  singleflight.Group
	missLimiter *rate.Limiter
	negative    *cache.LRU[string, time.Time]

	log zerolog.Logger
}

// NewManager creates a Manager with empty key sets. Call Init to load them.
func NewManager(opts Options, fetcher Fetcher) (*Manager, error) {
	if len(opts.URLs) == 0 {
		return nil, errors.New("keys: at least one JWKS URL is required")
	}
	if fetcher == nil {
		return nil, errors.New("keys: fetcher is required")
	}
	opts.setDefaults()

	m := &Manager{
		opts:        opts,
		fetcher:     fetcher,
		missLimiter: rate.NewLimiter(rate.Limit(opts.MissRefreshRate), opts.MissRefreshBurst),
		negative:    cache.NewLRU[string, time.Time](opts.NegativeCacheSize, opts.NegativeCacheDuration, cache.WithClock(opts.Now)),
		log:         logging.WithComponent("keys"),
	}

	seen := make(map[string]bool, len(opts.URLs))
	for _, url := range opts.URLs {
		if seen[url] {
			return nil, fmt.Errorf("keys: duplicate JWKS URL %s", url)
		}
		seen[url] = true

		src := &source{url: url}
		src.keys.Store(emptySet)
		m.sources = append(m.sources, src)
	}
	return m, nil
}

// Init fetches every source once. The returned error joins the failures of
// individual sources; sources that succeeded are usable either way.
func (m *Manager) Init(ctx context.Context) error {
	m.log.Info().Int("sources", len(m.sources)).Msg("Fetching trusted keys")
	err := m.Refresh(ctx)

	total := 0
	for _, src := range m.sources {
		total += src.keys.Load().len()
	}
	m.log.Info().Int("keys", total).Msg("Fetched trusted keys")
	return err
}

// Refresh fetches the given sources (all if none are named) concurrently and
// returns once each has been swapped in or has failed. A source that is
// already being fetched is not fetched again; its running fetch is awaited.
func (m *Manager) Refresh(ctx context.Context, urls ...string) error {
	targets := m.sources
	if len(urls) > 0 {
		targets = make([]*source, 0, len(urls))
		for _, url := range urls {
			src := m.source(url)
			if src == nil {
				return fmt.Errorf("keys: unknown JWKS URL %s", url)
			}
			targets = append(targets, src)
		}
	}

	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, src := range targets {
		g.Go(func() error {
			errs[i] = m.refreshSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (m *Manager) source(url string) *source {
	for _, src := range m.sources {
		if src.url == url {
			return src
		}
	}
	return nil
}

// refreshSource runs or joins the single in-flight fetch for src. The fetch
// itself is detached from ctx so a caller that gives up does not fail the
// other waiters.
func (m *Manager) refreshSource(ctx context.Context, src *source) error {
	ch := m.flights.DoChan(src.url, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.FetchTimeout)
		defer cancel()
		return nil, m.fetchAndSwap(fetchCtx, src)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchAndSwap is the only place a source's key set is replaced.
func (m *Manager) fetchAndSwap(ctx context.Context, src *source) error {
	start := time.Now()
	keys, err := m.fetcher.Fetch(ctx, src.url)
	if err == nil && len(keys) == 0 {
		err = errNoUsableKeys
	}
	duration := time.Since(start)

	src.mu.Lock()
	src.lastAttempt = m.opts.Now()
	src.lastErr = err
	src.mu.Unlock()

	if err != nil {
		metrics.RecordJWKSFetch(src.url, duration, 0, err)
		m.log.Warn().Err(err).
			Str("source", src.url).
			Int("cached_keys", src.keys.Load().len()).
			Msg("JWKS fetch failed, keeping previous keys")
		return fmt.Errorf("%s: %w", src.url, err)
	}

	next := newKeySet(keys, m.opts.Now())
	prev := src.keys.Swap(next)
	metrics.RecordJWKSFetch(src.url, duration, next.len(), nil)

	added, removed := diffIDs(prev, next)
	switch {
	case prev.fetchedAt.IsZero():
		m.log.Info().Str("source", src.url).Strs("kids", next.ids()).Msg("Loaded JWKS")
	case len(added) > 0 || len(removed) > 0:
		metrics.RecordJWKSRotation(src.url, len(added), len(removed))
		m.log.Info().Str("source", src.url).
			Strs("added", added).
			Strs("removed", removed).
			Msg("JWKS key rotation detected")
	default:
		m.log.Debug().Str("source", src.url).Int("keys", next.len()).Msg("JWKS unchanged")
	}

	if len(added) > 0 || len(next.withoutID) > len(prev.withoutID) {
		m.negative.Clear()
	}
	return nil
}

// Resolve returns the keys that may verify a token with the given header
// kid and alg. A kid naming a known key yields exactly that key. Keys from a
// stale source trigger a refresh of that source first (stale keys are still
// used if it fails). A kid that names no known key counts as a miss even when
// kid-less keys of alg exist: every source is refreshed once and the lookup
// repeated, and only then are the kid-less keys handed out. A kid that still
// misses is remembered in the negative cache.
func (m *Manager) Resolve(ctx context.Context, kid, alg string) ([]*Key, error) {
	keys, exact, err := m.find(kid, alg)
	if err == nil && len(keys) > 0 {
		if due := m.staleSourcesOf(keys); len(due) > 0 {
			m.log.Debug().Strs("sources", due).Msg("Refreshing stale JWKS sources")
			_ = m.Refresh(ctx, due...)
			keys, exact, err = m.find(kid, alg)
		}
	}
	if err != nil {
		metrics.RecordKeyLookup("mismatch")
		return nil, err
	}
	if exact || (kid == "" && len(keys) > 0) {
		metrics.RecordKeyLookup("hit")
		return keys, nil
	}

	negKey := negativeKey(kid, alg)
	if _, ok := m.negative.Get(negKey); ok {
		return m.missResult(kid, keys, "suppressed", "recently missed")
	}

	if !m.missRefresh(ctx) {
		m.negative.Add(negKey, m.opts.Now())
		m.log.Debug().Str("kid", kid).Msg("Miss-triggered JWKS refresh throttled")
		return m.missResult(kid, keys, "throttled", "")
	}

	keys, exact, err = m.find(kid, alg)
	if err != nil {
		metrics.RecordKeyLookup("mismatch")
		return nil, err
	}
	if exact || (kid == "" && len(keys) > 0) {
		metrics.RecordKeyLookup("refreshed")
		return keys, nil
	}
	m.negative.Add(negKey, m.opts.Now())
	return m.missResult(kid, keys, "not_found", "")
}

// missResult ends a lookup whose kid matched nothing: the kid-less
// candidates if there are any, ErrKeyNotFound otherwise.
func (m *Manager) missResult(kid string, keyless []*Key, result, note string) ([]*Key, error) {
	if len(keyless) > 0 {
		metrics.RecordKeyLookup("keyless")
		return keyless, nil
	}
	metrics.RecordKeyLookup(result)
	if note != "" {
		return nil, fmt.Errorf("%w: kid %q (%s)", ErrKeyNotFound, kid, note)
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

func negativeKey(kid, alg string) string {
	if kid == "" {
		return "\x00" + alg
	}
	return kid
}

// find searches every source's current snapshot. An exact kid match wins
// over everything else and is reported through exact.
func (m *Manager) find(kid, alg string) (keys []*Key, exact bool, err error) {
	var candidates []*Key
	mismatch := false
	for _, src := range m.sources {
		res := src.keys.Load().lookup(kid, alg)
		if res.exact != nil {
			return []*Key{res.exact}, true, nil
		}
		if res.mismatch {
			mismatch = true
		}
		candidates = append(candidates, res.candidates...)
	}
	if len(candidates) == 0 && mismatch {
		return nil, false, fmt.Errorf("%w: kid %q, alg %s", ErrAlgorithmMismatch, kid, alg)
	}
	return candidates, false, nil
}

// missRefresh refreshes all sources on behalf of a lookup miss. Concurrent
// misses share one round; it reports false when the round was throttled.
func (m *Manager) missRefresh(ctx context.Context) bool {
	ch := m.missFlight.DoChan("miss", func() (any, error) {
		if !m.missLimiter.Allow() {
			return false, nil
		}
		_ = m.Refresh(context.WithoutCancel(ctx))
		return true, nil
	})

	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

// staleSourcesOf returns the stale sources among keys' origins that have
// not been attempted within RetryInterval.
func (m *Manager) staleSourcesOf(keys []*Key) []string {
	now := m.opts.Now()
	var due []string
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k.Source] {
			continue
		}
		seen[k.Source] = true

		src := m.source(k.Source)
		if src == nil || !m.isStale(src, now) {
			continue
		}
		if last, _ := src.attempt(); !last.IsZero() && now.Sub(last) < m.opts.RetryInterval {
			continue
		}
		due = append(due, src.url)
	}
	return due
}

func (m *Manager) isStale(src *source, now time.Time) bool {
	fetched := src.keys.Load().fetchedAt
	return fetched.IsZero() || now.Sub(fetched) > m.opts.KeyCacheDuration
}

// URLs returns the configured source URLs in order.
func (m *Manager) URLs() []string {
	out := make([]string, len(m.sources))
	for i, src := range m.sources {
		out[i] = src.url
	}
	return out
}

// Status reports every source's state.
func (m *Manager) Status() []SourceStatus {
	now := m.opts.Now()
	out := make([]SourceStatus, 0, len(m.sources))
	for _, src := range m.sources {
		set := src.keys.Load()
		last, err := src.attempt()

		st := SourceStatus{
			URL:   src.url,
			Keys:  set.len(),
			Stale: m.isStale(src, now),
		}
		if !set.fetchedAt.IsZero() {
			t := set.fetchedAt
			st.LastFetch = &t
		}
		if !last.IsZero() {
			st.LastAttempt = &last
		}
		if err != nil {
			st.LastError = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Healthy reports whether every source currently holds at least one key.
func (m *Manager) Healthy() bool {
	for _, src := range m.sources {
		if src.keys.Load().len() == 0 {
			return false
		}
	}
	return true
}
