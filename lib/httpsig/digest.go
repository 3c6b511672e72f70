// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DigestAlgorithm identifies the hash algorithm for Content-Digest
// per RFC 9530.
type DigestAlgorithm string

const (
	// DigestSHA256 uses SHA-256 for content digest.
	DigestSHA256 DigestAlgorithm = "sha-256"

	// DigestSHA512 uses SHA-512 for content digest.
	DigestSHA512 DigestAlgorithm = "sha-512"
)

// ContentDigest is the result of hashing a message body: the
// algorithm, the raw digest, and the rendered header value.
type ContentDigest struct {
	Algorithm DigestAlgorithm
	Digest    []byte

	// HeaderValue is the wire form: <algo>=:<base64(digest)>:
	HeaderValue string
}

// ComputeContentDigest hashes body under the named algorithm and
// renders the Content-Digest header value. Pure and deterministic.
func ComputeContentDigest(body []byte, algorithm DigestAlgorithm) (ContentDigest, error) {
	digest, err := hashBody(body, algorithm)
	if err != nil {
		return ContentDigest{}, err
	}
	return ContentDigest{
		Algorithm:   algorithm,
		Digest:      digest,
		HeaderValue: fmt.Sprintf("%s=:%s:", algorithm, base64.StdEncoding.EncodeToString(digest)),
	}, nil
}

// SetContentDigest reads the request body, computes its digest, sets
// the Content-Digest header, and restores the body so downstream
// consumers can read it again.
func SetContentDigest(r *http.Request, algorithm DigestAlgorithm) error {
	body, err := readAndRestoreBody(r)
	if err != nil {
		return err
	}

	digest, err := ComputeContentDigest(body, algorithm)
	if err != nil {
		return err
	}
	r.Header.Set("Content-Digest", digest.HeaderValue)
	return nil
}

// VerifyContentDigest checks the Content-Digest header against a
// fresh digest of the actual request body. Multiple digest values in
// the header are allowed; the first recognized algorithm is checked.
func VerifyContentDigest(r *http.Request) error {
	header := r.Header.Get("Content-Digest")
	if header == "" {
		return ErrDigestNotFound
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return err
	}

	for _, entry := range strings.Split(header, ",") {
		algorithm, encoded, ok := parseDigestEntry(strings.TrimSpace(entry))
		if !ok {
			continue
		}

		expected, err := hashBody(body, algorithm)
		if err != nil {
			return err
		}
		actual, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("%w: invalid base64 in digest", ErrFormat)
		}
		if !bytes.Equal(expected, actual) {
			return ErrDigestMismatch
		}
		return nil
	}

	return ErrUnsupportedDigest
}

// parseDigestEntry parses a single "alg=:base64:" member of the
// Content-Digest dictionary.
func parseDigestEntry(entry string) (DigestAlgorithm, string, bool) {
	algString, value, ok := strings.Cut(entry, "=")
	if !ok {
		return "", "", false
	}

	algorithm := DigestAlgorithm(strings.TrimSpace(algString))
	value = strings.TrimSpace(value)
	if len(value) < 2 || value[0] != ':' || value[len(value)-1] != ':' {
		return "", "", false
	}

	switch algorithm {
	case DigestSHA256, DigestSHA512:
		return algorithm, value[1 : len(value)-1], true
	default:
		return "", "", false
	}
}

func hashBody(body []byte, algorithm DigestAlgorithm) ([]byte, error) {
	switch algorithm {
	case DigestSHA256:
		sum := sha256.Sum256(body)
		return sum[:], nil
	case DigestSHA512:
		sum := sha512.Sum512(body)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDigest, algorithm)
	}
}

// readAndRestoreBody drains the request body and replaces it with an
// equivalent reader so the body can be consumed again downstream.
func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("httpsig: reading request body: %w", err)
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
