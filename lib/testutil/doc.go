// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Meridian packages.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// key IDs, owner IDs, or nonces that must be distinguishable across
// parallel subtests.
//
// [GenerateKey] produces a deterministic-free Ed25519 keypair and
// fails the test on error, removing the three-line boilerplate from
// every signing test.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Meridian-internal dependencies.
package testutil
