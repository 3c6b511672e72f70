// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"crypto/ed25519"
	"errors"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/meridian-foundation/meridian/lib/clock"
	"github.com/meridian-foundation/meridian/lib/testutil"
)

func TestSignSetsHeaders(t *testing.T) {
	_, private := testutil.GenerateKey(t)
	clk := clock.Fake(time.Unix(1700000000, 0))

	signer := &Signer{KeyID: "k1", PrivateKey: private, Clock: clk}
	r := httptest.NewRequest("GET", "https://node.example/data?q=1", nil)

	envelope, err := signer.Sign(r)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	input := r.Header.Get("Signature-Input")
	if !strings.HasPrefix(input, "sig1=(") {
		t.Errorf("Signature-Input = %q, want sig1 label", input)
	}
	if !strings.Contains(input, `keyid="k1"`) {
		t.Errorf("Signature-Input missing keyid: %q", input)
	}
	if !strings.Contains(input, `alg="ed25519"`) {
		t.Errorf("Signature-Input missing alg: %q", input)
	}
	if !strings.Contains(input, "created=1700000000") {
		t.Errorf("Signature-Input missing created: %q", input)
	}

	signature := r.Header.Get("Signature")
	if !strings.HasPrefix(signature, "sig1=:") || !strings.HasSuffix(signature, ":") {
		t.Errorf("Signature = %q, want sig1=:...:", signature)
	}

	if envelope.KeyID != "k1" || envelope.Algorithm != AlgorithmEd25519 {
		t.Errorf("envelope identity = %q/%q", envelope.KeyID, envelope.Algorithm)
	}
	if envelope.Nonce == "" {
		t.Error("envelope nonce is empty")
	}
	if len(envelope.Signature) != ed25519.SignatureSize {
		t.Errorf("signature length = %d, want %d", len(envelope.Signature), ed25519.SignatureSize)
	}
	if !slices.Equal(envelope.Components, defaultCoveredComponents) {
		t.Errorf("components = %v, want defaults %v", envelope.Components, defaultCoveredComponents)
	}
}

func TestSignFreshNoncePerRequest(t *testing.T) {
	_, private := testutil.GenerateKey(t)
	signer := &Signer{KeyID: "k1", PrivateKey: private}

	first, err := signer.Sign(httptest.NewRequest("GET", "https://node.example/a", nil))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	second, err := signer.Sign(httptest.NewRequest("GET", "https://node.example/a", nil))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first.Nonce == second.Nonce {
		t.Errorf("nonce %q reused across requests", first.Nonce)
	}
}

func TestSignWithContentDigest(t *testing.T) {
	_, private := testutil.GenerateKey(t)
	signer := &Signer{
		KeyID:           "k1",
		PrivateKey:      private,
		DigestAlgorithm: DigestSHA256,
	}

	r := httptest.NewRequest("POST", "https://node.example/submit", strings.NewReader(`{"v":1}`))
	envelope, err := signer.Sign(r)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if r.Header.Get("Content-Digest") == "" {
		t.Error("Content-Digest header not set")
	}
	if !slices.Contains(envelope.Components, "content-digest") {
		t.Errorf("components = %v, want content-digest covered", envelope.Components)
	}
	if err := VerifyContentDigest(r); err != nil {
		t.Errorf("VerifyContentDigest: %v", err)
	}
}

func TestSignCustomLabelAndComponents(t *testing.T) {
	_, private := testutil.GenerateKey(t)
	signer := &Signer{
		KeyID:      "k1",
		PrivateKey: private,
		Components: []string{ComponentMethod, ComponentPath, "content-type"},
		Label:      "meridian",
	}

	r := httptest.NewRequest("GET", "https://node.example/data", nil)
	r.Header.Set("Content-Type", "application/cbor")

	envelope, err := signer.Sign(r)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasPrefix(r.Header.Get("Signature-Input"), "meridian=(") {
		t.Errorf("Signature-Input = %q, want meridian label", r.Header.Get("Signature-Input"))
	}
	if !slices.Equal(envelope.Components, signer.Components) {
		t.Errorf("components = %v, want %v", envelope.Components, signer.Components)
	}
}

func TestSignMissingCoveredHeader(t *testing.T) {
	_, private := testutil.GenerateKey(t)
	signer := &Signer{
		KeyID:      "k1",
		PrivateKey: private,
		Components: []string{ComponentMethod, "x-absent"},
	}

	_, err := signer.Sign(httptest.NewRequest("GET", "https://node.example/", nil))
	if !errors.Is(err, ErrMissingComponent) {
		t.Fatalf("err = %v, want ErrMissingComponent", err)
	}
}

func TestSignRejectsBadKeyMaterial(t *testing.T) {
	_, private := testutil.GenerateKey(t)

	cases := []struct {
		name   string
		signer *Signer
	}{
		{"short key", &Signer{KeyID: "k1", PrivateKey: private[:16]}},
		{"nil key", &Signer{KeyID: "k1"}},
		{"empty key ID", &Signer{PrivateKey: private}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.signer.Sign(httptest.NewRequest("GET", "https://node.example/", nil))
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("err = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestSignSupportsMultipleSignatures(t *testing.T) {
	_, privateA := testutil.GenerateKey(t)
	_, privateB := testutil.GenerateKey(t)

	r := httptest.NewRequest("GET", "https://node.example/data", nil)
	if _, err := (&Signer{KeyID: "ka", PrivateKey: privateA, Label: "siga"}).Sign(r); err != nil {
		t.Fatalf("first Sign: %v", err)
	}
	if _, err := (&Signer{KeyID: "kb", PrivateKey: privateB, Label: "sigb"}).Sign(r); err != nil {
		t.Fatalf("second Sign: %v", err)
	}

	input := r.Header.Get("Signature-Input")
	if !strings.Contains(input, "siga=(") || !strings.Contains(input, "sigb=(") {
		t.Errorf("Signature-Input missing a label: %q", input)
	}

	for _, label := range []string{"siga", "sigb"} {
		if _, _, err := findSignatureEntry(r.Header.Get("Signature"), label); err != nil {
			t.Errorf("signature %q not found: %v", label, err)
		}
	}
}
