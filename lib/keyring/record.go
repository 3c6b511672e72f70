// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidRecord indicates a record that fails validation, most
// commonly a public key that is not exactly 32 bytes.
var ErrInvalidRecord = errors.New("keyring: invalid public key record")

// PublicKeyRecord is the registered identity of a signer. The
// Registry owns the canonical copy of every record; callers always
// receive and supply independent copies, so holding a returned
// record never aliases cached state.
type PublicKeyRecord struct {
	// KeyID uniquely identifies the record. Immutable once created;
	// at most one active record exists per KeyID.
	KeyID string `cbor:"1,keyasint"`

	// PublicKey is the 32-byte Ed25519 public key.
	PublicKey []byte `cbor:"2,keyasint"`

	// OwnerID names the principal this key belongs to.
	OwnerID string `cbor:"3,keyasint,omitempty"`

	// Permissions are opaque to this package; they pass through to
	// the authorization layer alongside the verified identity.
	Permissions []string `cbor:"4,keyasint,omitempty"`

	// CreatedAt is when the record was registered or rotated in.
	CreatedAt time.Time `cbor:"5,keyasint,omitempty"`

	// ExpiresAt, when non-zero, is the instant the key stops
	// verifying. Zero means no expiry.
	ExpiresAt time.Time `cbor:"6,keyasint,omitempty"`

	// Version increments on every rotation of this identity.
	Version uint64 `cbor:"7,keyasint"`

	// Revoked marks the key as administratively invalid without
	// deleting its history.
	Revoked bool `cbor:"8,keyasint,omitempty"`
}

// Validate checks the structural invariants of a record.
func (r *PublicKeyRecord) Validate() error {
	if r.KeyID == "" {
		return fmt.Errorf("%w: key ID is required", ErrInvalidRecord)
	}
	if len(r.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d",
			ErrInvalidRecord, ed25519.PublicKeySize, len(r.PublicKey))
	}
	return nil
}

// Active reports whether the record verifies signatures at the given
// instant: not revoked and not past its expiry.
func (r *PublicKeyRecord) Active(now time.Time) bool {
	if r.Revoked {
		return false
	}
	if !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt) {
		return false
	}
	return true
}

// Clone returns an independent copy: mutating the clone's slices
// never affects the original.
func (r *PublicKeyRecord) Clone() PublicKeyRecord {
	clone := *r
	clone.PublicKey = slices.Clone(r.PublicKey)
	clone.Permissions = slices.Clone(r.Permissions)
	return clone
}
