// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyfile stores client and operator Ed25519 private keys at
// rest as age ciphertext under a passphrase (scrypt recipient). It
// wraps filippo.io/age for the two operations the key tooling needs:
// seal a key to disk, and load it back.
//
// The plaintext is a small CBOR payload carrying the key ID alongside
// the 64-byte private key, so a key file is self-describing: loading
// it yields both the key material and the registry identity it signs
// for. Files are written with 0600 permissions.
package keyfile
