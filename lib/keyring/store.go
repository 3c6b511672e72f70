// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get for an unknown key ID.
var ErrNotFound = errors.New("keyring: record not found")

// Store is the persistence abstraction under the Registry: a durable
// keyed tree mapping key_id to a serialized record. Implementations
// must be safe for concurrent use. The Registry is the only caller;
// it never reads the store on the verification hot path, only during
// construction, write-through, and migration.
type Store interface {
	// Get returns the serialized record for keyID, or ErrNotFound.
	Get(ctx context.Context, keyID string) ([]byte, error)

	// Put stores the serialized record under keyID, replacing any
	// existing value.
	Put(ctx context.Context, keyID string, record []byte) error

	// Delete removes the record for keyID. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, keyID string) error

	// List returns every stored key ID.
	List(ctx context.Context) ([]string, error)
}
