// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"testing"
	"time"

	"github.com/meridian-foundation/meridian/lib/clock"
)

func TestNonceObserveDetectsReuse(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	cache := NewNonceCache(clk)

	expiry := clk.Now().Add(5 * time.Minute)
	if !cache.Observe("k1", "n1", expiry) {
		t.Fatal("first observation rejected")
	}
	if cache.Observe("k1", "n1", expiry) {
		t.Fatal("replayed nonce accepted")
	}
}

func TestNonceScopedPerKey(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	cache := NewNonceCache(clk)

	expiry := clk.Now().Add(5 * time.Minute)
	if !cache.Observe("k1", "shared", expiry) {
		t.Fatal("first key rejected")
	}
	if !cache.Observe("k2", "shared", expiry) {
		t.Fatal("same nonce under a different key rejected")
	}
}

func TestNonceExpiresWithFreshnessWindow(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	cache := NewNonceCache(clk)

	if !cache.Observe("k1", "n1", clk.Now().Add(5*time.Minute)) {
		t.Fatal("first observation rejected")
	}

	// Once the window closes the timestamp check rejects the message
	// anyway, so the nonce may be forgotten and even reused.
	clk.Advance(5 * time.Minute)
	if !cache.Observe("k1", "n1", clk.Now().Add(5*time.Minute)) {
		t.Fatal("expired nonce still tracked")
	}
}

func TestNonceCleanup(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	cache := NewNonceCache(clk)

	cache.Observe("k1", "short", clk.Now().Add(time.Minute))
	cache.Observe("k1", "long", clk.Now().Add(time.Hour))
	if got := cache.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}

	clk.Advance(2 * time.Minute)
	if removed := cache.Cleanup(); removed != 1 {
		t.Errorf("Cleanup removed %d, want 1", removed)
	}
	if got := cache.Len(); got != 1 {
		t.Errorf("Len after cleanup = %d, want 1", got)
	}
}

func TestNonceCacheStaysBounded(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	cache := NewNonceCache(clk)

	// Entries expire as the clock moves; lazy eviction on Observe
	// keeps the cache proportional to the window, not to history.
	for i := 0; i < 100; i++ {
		cache.Observe("k1", string(rune('a'+i%26))+string(rune('0'+i/26)), clk.Now().Add(10*time.Second))
		clk.Advance(time.Second)
	}

	if got := cache.Len(); got > 11 {
		t.Errorf("Len = %d, want at most 11", got)
	}
}
