// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestComputeContentDigestKnownVector(t *testing.T) {
	// Test vector from RFC 9530 Section 3.
	body := []byte(`{"hello": "world"}`)

	digest, err := ComputeContentDigest(body, DigestSHA256)
	if err != nil {
		t.Fatalf("ComputeContentDigest: %v", err)
	}

	want := "sha-256=:X48E9qOokqqrvdts8nOJRJN3OWDUoyWxBf7kbu9DBPE=:"
	if digest.HeaderValue != want {
		t.Errorf("HeaderValue = %q, want %q", digest.HeaderValue, want)
	}
}

func TestComputeContentDigestUnsupported(t *testing.T) {
	if _, err := ComputeContentDigest([]byte("x"), "md5"); !errors.Is(err, ErrUnsupportedDigest) {
		t.Fatalf("err = %v, want ErrUnsupportedDigest", err)
	}
}

func TestSetContentDigestRestoresBody(t *testing.T) {
	const body = `{"hello": "world"}`
	r := httptest.NewRequest("POST", "https://node.example/submit", strings.NewReader(body))

	if err := SetContentDigest(r, DigestSHA256); err != nil {
		t.Fatalf("SetContentDigest: %v", err)
	}

	if got := r.Header.Get("Content-Digest"); !strings.HasPrefix(got, "sha-256=:") {
		t.Errorf("Content-Digest = %q", got)
	}

	// The body must still be readable downstream.
	rest, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("reading body after SetContentDigest: %v", err)
	}
	if string(rest) != body {
		t.Errorf("body after digest = %q, want %q", rest, body)
	}
}

func TestVerifyContentDigest(t *testing.T) {
	const body = "payload"

	t.Run("matches", func(t *testing.T) {
		r := httptest.NewRequest("POST", "https://node.example/submit", strings.NewReader(body))
		if err := SetContentDigest(r, DigestSHA512); err != nil {
			t.Fatalf("SetContentDigest: %v", err)
		}
		if err := VerifyContentDigest(r); err != nil {
			t.Errorf("VerifyContentDigest: %v", err)
		}
	})

	t.Run("body changed after digest", func(t *testing.T) {
		r := httptest.NewRequest("POST", "https://node.example/submit", strings.NewReader(body))
		if err := SetContentDigest(r, DigestSHA256); err != nil {
			t.Fatalf("SetContentDigest: %v", err)
		}
		r.Body = io.NopCloser(strings.NewReader("tampered"))
		if err := VerifyContentDigest(r); !errors.Is(err, ErrDigestMismatch) {
			t.Errorf("err = %v, want ErrDigestMismatch", err)
		}
	})

	t.Run("header absent", func(t *testing.T) {
		r := httptest.NewRequest("POST", "https://node.example/submit", strings.NewReader(body))
		if err := VerifyContentDigest(r); !errors.Is(err, ErrDigestNotFound) {
			t.Errorf("err = %v, want ErrDigestNotFound", err)
		}
	})

	t.Run("only unrecognized algorithms", func(t *testing.T) {
		r := httptest.NewRequest("POST", "https://node.example/submit", strings.NewReader(body))
		r.Header.Set("Content-Digest", "md5=:abcd:")
		if err := VerifyContentDigest(r); !errors.Is(err, ErrUnsupportedDigest) {
			t.Errorf("err = %v, want ErrUnsupportedDigest", err)
		}
	})

	t.Run("first recognized entry wins", func(t *testing.T) {
		r := httptest.NewRequest("POST", "https://node.example/submit", strings.NewReader(body))
		digest, err := ComputeContentDigest([]byte(body), DigestSHA256)
		if err != nil {
			t.Fatalf("ComputeContentDigest: %v", err)
		}
		r.Header.Set("Content-Digest", "md5=:ignored:, "+digest.HeaderValue)
		if err := VerifyContentDigest(r); err != nil {
			t.Errorf("VerifyContentDigest: %v", err)
		}
	})
}
