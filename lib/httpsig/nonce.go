// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"sync"
	"time"

	"github.com/meridian-foundation/meridian/lib/clock"
)

// nonceKey identifies a nonce observation. Nonces are scoped per key
// so one client's nonce cannot collide with another's.
type nonceKey struct {
	keyID string
	nonce string
}

// NonceCache is a thread-safe set of recently observed nonces used
// for replay protection. An entry lives only until its signature's
// freshness window closes — after that, the timestamp check rejects
// the message regardless, so remembering the nonce is unnecessary.
// This keeps the cache bounded by request rate times window length,
// never by total history.
//
// Eviction is lazy: every Observe call first drops expired entries.
// Long-running verifiers may additionally run [NonceCache.Cleanup]
// on a ticker, but correctness does not depend on it.
type NonceCache struct {
	clk clock.Clock

	mu      sync.Mutex
	entries map[nonceKey]time.Time
}

// NewNonceCache creates an empty nonce cache reading time from clk.
func NewNonceCache(clk clock.Clock) *NonceCache {
	return &NonceCache{
		clk:     clk,
		entries: make(map[nonceKey]time.Time),
	}
}

// Observe records a nonce observation for keyID with the given
// expiry (the signature's created time plus the policy's freshness
// window). It returns false if the nonce was already observed and has
// not yet expired — a replay.
func (c *NonceCache) Observe(keyID, nonce string, expiresAt time.Time) bool {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked(now)

	key := nonceKey{keyID: keyID, nonce: nonce}
	if _, seen := c.entries[key]; seen {
		return false
	}
	c.entries[key] = expiresAt
	return true
}

// Cleanup removes expired entries and reports how many were dropped.
func (c *NonceCache) Cleanup() int {
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked(now)
}

// Len returns the current number of tracked nonces.
func (c *NonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops entries whose freshness window has closed.
// Called with c.mu held.
func (c *NonceCache) evictLocked(now time.Time) int {
	removed := 0
	for key, expiresAt := range c.entries {
		if !now.Before(expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
