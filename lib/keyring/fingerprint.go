// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// fingerprintDomainKey is the 32-byte key for BLAKE3 keyed hashing
// of public keys. The fixed key domain-separates key fingerprints
// from every other BLAKE3 use; the byte values are the ASCII domain
// name zero-padded to 32 bytes so the key is inspectable in hex
// dumps. Changing it invalidates all server-assigned key IDs.
var fingerprintDomainKey = [32]byte{
	'm', 'e', 'r', 'i', 'd', 'i', 'a', 'n', '.', 'k', 'e', 'y', 'r', 'i', 'n', 'g',
	'.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0,
}

// fingerprintLength is the number of digest bytes kept in the hex
// form. 16 bytes (128 bits) keeps IDs short while making collisions
// unreachable for any realistic key population.
const fingerprintLength = 16

// Fingerprint computes the server-assigned key ID for a public key:
// the hex form of a truncated BLAKE3 keyed hash over the key bytes.
// Deterministic, so re-registering the same key always yields the
// same ID.
func Fingerprint(publicKey []byte) string {
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		// NewKeyed fails only for a key that is not 32 bytes, which
		// the array type rules out.
		panic("keyring: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(publicKey)
	return hex.EncodeToString(hasher.Sum(nil)[:fingerprintLength])
}
