// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyring manages the lifecycle of registered Ed25519 public
// keys: registration, in-memory caching, durable persistence, atomic
// rotation, migration, and encrypted snapshots.
//
// The Registry is the single stateful component. It owns the
// canonical copy of every PublicKeyRecord in an in-memory cache,
// optionally backed by a Store. Mutations update the cache first and
// then write through to the store best-effort: a store failure
// degrades durability (the mutation reports MemoryOnly) but never
// blocks authentication. The Coordinator and the migration routine
// mutate exclusively through the Registry, so cache consistency
// logic lives in one place.
//
// Rotation is a possession proof: a RotationRequest signed by the
// old private key replaces the old record with the new one in a
// single critical section. No grace period exists in which both or
// neither key verifies.
package keyring
