// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestLRU_GetAdd(t *testing.T) {
	c := NewLRU[string, int](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache should miss")
	}

	c.Add("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}

	c.Add("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) after update = %d, want 2", v)
	}

	hits, misses, size := c.Stats()
	if hits != 2 || misses != 1 || size != 1 {
		t.Errorf("Stats() = (%d, %d, %d), want (2, 1, 1)", hits, misses, size)
	}
}

func TestLRU_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewLRU[string, time.Time](10, 5*time.Second, WithClock(clock.Now))

	c.Add("kid-1", clock.Now())
	clock.Advance(4 * time.Second)
	if _, ok := c.Get("kid-1"); !ok {
		t.Fatal("entry should still be live after 4s")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("kid-1"); ok {
		t.Error("entry should expire at exactly ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on Get, Len() = %d", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string, int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	c.Get("a") // a becomes most recently used
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestLRU_RemoveClearCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := NewLRU[string, int](10, time.Second, WithClock(clock.Now))

	c.Add("a", 1)
	if !c.Remove("a") {
		t.Error("Remove(a) should report true")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) should report false")
	}

	c.Add("x", 1)
	c.Add("y", 2)
	clock.Advance(2 * time.Second)
	c.Add("z", 3)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[string, int](100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				key := fmt.Sprintf("k%d", (n*j)%150)
				c.Add(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}
