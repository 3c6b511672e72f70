// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpsig implements HTTP message signing and verification for
// Meridian's request-authentication protocol, following RFC 9421
// (HTTP Message Signatures) with Content-Digest support per RFC 9530.
//
// Every privileged request to a Meridian node carries a detached
// Ed25519 signature over a canonical reconstruction of the request:
//
//	Signature-Input: sig1=("@method" "@target-uri");created=1718900000;keyid="client-001";alg="ed25519";nonce="..."
//	Signature: sig1=:<base64 of 64-byte Ed25519 signature>:
//
// # Signing
//
// [Signer] holds a client's key ID and Ed25519 private key and signs
// requests in place, generating a fresh nonce and timestamp per call:
//
//	signer := &httpsig.Signer{KeyID: "client-001", PrivateKey: priv}
//	envelope, err := signer.Sign(req)
//
// # Verification
//
// [Verifier] re-derives the canonical message from the incoming
// request using the component list declared in the signature, resolves
// the public key through a [KeyDirectory] (the node's public-key
// registry), and runs the check pipeline: format → key → crypto →
// replay → policy. The returned [Result] records the outcome of every
// check computed, not only the first failure, so the dispatch layer
// can log rich diagnostics.
//
//	verifier := httpsig.NewVerifier(registry, httpsig.VerifierConfig{})
//	result := verifier.Verify(req, "standard")
//	if !result.Valid() {
//	    // result.Failure is one of the taxonomy sentinels.
//	}
//
// # Policies
//
// Verification strictness is policy-driven. The built-in policies
// (strict, standard, lenient, legacy) trade security for
// compatibility in a fixed, documented way; custom policies register
// through a [PolicySet] and may be defined in JSONC files loaded with
// [LoadPolicyFile].
//
// # Replay protection
//
// Signatures carry a created timestamp and a single-use nonce. The
// [NonceCache] tracks nonces per key for the policy's freshness
// window only — entries evict once the window passes, so the cache
// stays bounded regardless of request volume.
package httpsig
