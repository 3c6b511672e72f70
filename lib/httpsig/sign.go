// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-foundation/meridian/lib/clock"
)

// defaultCoveredComponents are signed when Signer.Components is
// empty. Method and target URI are the minimum that binds a
// signature to a specific operation on a specific resource.
var defaultCoveredComponents = []string{ComponentMethod, ComponentTargetURI}

// Envelope is the per-request signature artifact: everything the
// Signer produced and the Verifier consumes. Envelopes are never
// persisted — replay protection tracks nonces only for the freshness
// window.
type Envelope struct {
	KeyID      string
	Algorithm  string
	Created    time.Time
	Nonce      string
	Components []string
	Signature  []byte
}

// Signer signs outgoing requests with a client-held Ed25519 private
// key. The zero value is not usable: KeyID and PrivateKey are
// required. Signer is stateless apart from its configuration and is
// safe for concurrent use.
type Signer struct {
	// KeyID names the registered public key the verifier should
	// resolve.
	KeyID string

	// PrivateKey is the Ed25519 private key (64 bytes: seed plus
	// public half, per crypto/ed25519).
	PrivateKey ed25519.PrivateKey

	// Components lists the component identifiers to cover, in
	// signature order. Empty means defaultCoveredComponents.
	Components []string

	// DigestAlgorithm, when set, computes and sets a Content-Digest
	// header before signing and adds ComponentContentDigest to the
	// covered components.
	DigestAlgorithm DigestAlgorithm

	// Label identifies the signature in the Signature and
	// Signature-Input dictionaries. Defaults to "sig1".
	Label string

	// Clock supplies the created timestamp. Nil means clock.Real().
	Clock clock.Clock
}

// Sign signs the request in place: it computes the canonical message
// with a fresh nonce and created timestamp, signs it, and sets the
// Signature-Input and Signature headers. The returned Envelope
// reports exactly what was signed.
func (s *Signer) Sign(r *http.Request) (*Envelope, error) {
	if len(s.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d",
			ErrInvalidKey, ed25519.PrivateKeySize, len(s.PrivateKey))
	}
	if s.KeyID == "" {
		return nil, fmt.Errorf("%w: key ID is required", ErrInvalidKey)
	}

	clk := s.Clock
	if clk == nil {
		clk = clock.Real()
	}

	components := s.Components
	if len(components) == 0 {
		components = defaultCoveredComponents
	}

	if s.DigestAlgorithm != "" {
		if err := SetContentDigest(r, s.DigestAlgorithm); err != nil {
			return nil, err
		}
		if !slices.Contains(components, ComponentContentDigest) {
			components = append(slices.Clone(components), ComponentContentDigest)
		}
	}

	params := signatureParams{
		components: components,
		created:    clk.Now(),
		keyID:      s.KeyID,
		nonce:      uuid.NewString(),
	}

	base, serialized, err := canonicalMessage(r, params)
	if err != nil {
		return nil, err
	}

	signature := ed25519.Sign(s.PrivateKey, base)

	label := s.Label
	if label == "" {
		label = "sig1"
	}
	appendDictionaryMember(r, "Signature-Input", label, serialized)
	appendDictionaryMember(r, "Signature", label, ":"+base64.StdEncoding.EncodeToString(signature)+":")

	return &Envelope{
		KeyID:      params.keyID,
		Algorithm:  AlgorithmEd25519,
		Created:    params.created,
		Nonce:      params.nonce,
		Components: components,
		Signature:  signature,
	}, nil
}

// appendDictionaryMember appends key=value to an RFC 8941 dictionary
// header, preserving existing members so a request can carry multiple
// signatures.
func appendDictionaryMember(r *http.Request, header, key, value string) {
	entry := key + "=" + value
	if existing := r.Header.Get(header); existing != "" {
		entry = existing + ", " + entry
	}
	r.Header.Set(header, entry)
}
