// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Meridian's standard CBOR encoding configuration.
//
// Meridian uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: HTTP endpoints, CLI output, and
//     policy definition files.
//   - CBOR for internal protocols: persisted public-key records,
//     signed rotation requests, rotation events, and registry
//     snapshots.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Meridian package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes — a hard requirement for rotation requests, where the signer
// and the verifier must agree bit-for-bit on the signed payload.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types serialized by this package carry `cbor:"N,keyasint"` struct
// tags: integer keys keep the persisted form compact and make field
// renames non-breaking.
package codec
