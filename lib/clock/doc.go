// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability.
//
// Production code injects [Real]; tests inject [Fake] and advance time
// deterministically. Replay-window checks, nonce eviction, and record
// expiry all read the clock through this interface, so tests never
// sleep to cross a freshness boundary — they call [FakeClock.Advance].
package clock
