// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now()
// when tests need unique identifiers for key IDs, owner IDs, or
// nonces that must be distinguishable across parallel subtests.
//
//	keyID := testutil.UniqueID("key")      // "key-1", "key-2", ...
//	owner := testutil.UniqueID("owner")    // "owner-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
