// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import "errors"

// Verification failure taxonomy. Every failed [Result] wraps exactly
// one of these sentinels so the dispatch layer can map failures to
// reason codes without string matching.
var (
	// ErrFormat indicates malformed Signature or Signature-Input
	// headers. Always a client error, never retried.
	ErrFormat = errors.New("httpsig: malformed signature headers")

	// ErrKeyNotFound indicates the keyid references an unknown,
	// revoked, or expired key.
	ErrKeyNotFound = errors.New("httpsig: signing key not found")

	// ErrCryptographicMismatch indicates the Ed25519 signature does
	// not verify against the canonical message. Logged as a potential
	// attack indicator.
	ErrCryptographicMismatch = errors.New("httpsig: signature does not verify")

	// ErrReplayDetected indicates a stale created timestamp or a
	// reused nonce within the freshness window.
	ErrReplayDetected = errors.New("httpsig: replay detected")

	// ErrPolicyViolation indicates a policy-mandated component is not
	// covered by the signature, the content digest does not match, or
	// a custom policy rule rejected the request.
	ErrPolicyViolation = errors.New("httpsig: verification policy violated")
)

// Signing errors.
var (
	// ErrInvalidKey is returned when key material has the wrong
	// length for Ed25519.
	ErrInvalidKey = errors.New("httpsig: invalid key material")

	// ErrMissingComponent is returned when a covered component names
	// a header or derived component absent from the request.
	ErrMissingComponent = errors.New("httpsig: covered component missing from request")
)

// Digest errors.
var (
	// ErrDigestMismatch is returned when Content-Digest verification
	// fails against the actual body.
	ErrDigestMismatch = errors.New("httpsig: content digest mismatch")

	// ErrDigestNotFound is returned when a Content-Digest header is
	// required but not present.
	ErrDigestNotFound = errors.New("httpsig: content digest not found")

	// ErrUnsupportedDigest is returned for digest algorithms other
	// than sha-256 and sha-512.
	ErrUnsupportedDigest = errors.New("httpsig: unsupported digest algorithm")
)

// Policy errors.
var (
	// ErrUnknownPolicy is returned when verification names a policy
	// that is not registered.
	ErrUnknownPolicy = errors.New("httpsig: unknown verification policy")

	// ErrBuiltinPolicy is returned when registration would shadow a
	// built-in policy.
	ErrBuiltinPolicy = errors.New("httpsig: built-in policies cannot be replaced")
)
