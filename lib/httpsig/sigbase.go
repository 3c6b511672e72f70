// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AlgorithmEd25519 is the only signature algorithm Meridian accepts.
// The protocol deliberately has no algorithm agility: the keyid fully
// determines the verification key, and the alg parameter is checked
// against this constant.
const AlgorithmEd25519 = "ed25519"

// signatureParams holds the parameters serialized into the
// @signature-params component of the canonical message.
type signatureParams struct {
	components []string
	created    time.Time
	keyID      string
	nonce      string
}

// canonicalMessage constructs the exact byte sequence that is signed,
// per RFC 9421 Section 2.5: one line per covered component in the
// order chosen by the signer, then the @signature-params line.
//
//	"@method": GET
//	"@target-uri": https://node.example/data?q=1
//	"content-type": application/json
//	"@signature-params": ("@method" "@target-uri" "content-type");created=...;keyid="...";alg="ed25519";nonce="..."
//
// Deterministic and pure: the only failure mode is a covered
// component absent from the request (ErrMissingComponent).
func canonicalMessage(r *http.Request, params signatureParams) ([]byte, string, error) {
	var base strings.Builder

	for _, id := range params.components {
		value, err := componentValue(id, r)
		if err != nil {
			return nil, "", err
		}
		fmt.Fprintf(&base, "%q: %s\n", id, value)
	}

	serialized := serializeSignatureParams(params)
	fmt.Fprintf(&base, "%q: %s", "@signature-params", serialized)

	return []byte(base.String()), serialized, nil
}

// serializeSignatureParams produces the inner-list representation per
// RFC 9421 Section 2.3 and RFC 8941 Section 3.1.1:
//
//	("@method" "@target-uri");created=<ts>;keyid="<id>";alg="ed25519";nonce="<nonce>"
func serializeSignatureParams(params signatureParams) string {
	var b strings.Builder

	b.WriteByte('(')
	for i, id := range params.components {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Quote(id))
	}
	b.WriteByte(')')

	fmt.Fprintf(&b, ";created=%d", params.created.Unix())
	b.WriteString(";keyid=")
	b.WriteString(quoteStructuredField(params.keyID))
	b.WriteString(";alg=")
	b.WriteString(quoteStructuredField(AlgorithmEd25519))
	if params.nonce != "" {
		b.WriteString(";nonce=")
		b.WriteString(quoteStructuredField(params.nonce))
	}

	return b.String()
}

// parseSignatureParams parses a signature-params string as produced
// by serializeSignatureParams. The covered-component order is
// preserved exactly as declared — the verifier reconstructs the
// canonical message from this list, not from a fixed one.
func parseSignatureParams(raw string) (signatureParams, error) {
	var params signatureParams

	openParen := strings.IndexByte(raw, '(')
	closeParen := strings.IndexByte(raw, ')')
	if openParen != 0 || closeParen <= openParen {
		return params, fmt.Errorf("%w: signature params missing component list", ErrFormat)
	}

	components, err := parseInnerList(raw[openParen+1 : closeParen])
	if err != nil {
		return params, err
	}
	params.components = components

	algorithm := ""
	for _, part := range splitQuoteAware(raw[closeParen+1:], ';') {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return params, fmt.Errorf("%w: malformed parameter %q", ErrFormat, part)
		}

		switch key {
		case "created":
			seconds, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return params, fmt.Errorf("%w: invalid created timestamp", ErrFormat)
			}
			params.created = time.Unix(seconds, 0)

		case "keyid":
			params.keyID = unquoteStructuredField(value)

		case "alg":
			algorithm = unquoteStructuredField(value)

		case "nonce":
			params.nonce = unquoteStructuredField(value)
		}
	}

	if params.keyID == "" {
		return params, fmt.Errorf("%w: missing keyid parameter", ErrFormat)
	}
	if algorithm != AlgorithmEd25519 {
		return params, fmt.Errorf("%w: unsupported algorithm %q", ErrFormat, algorithm)
	}
	if params.created.IsZero() {
		return params, fmt.Errorf("%w: missing created parameter", ErrFormat)
	}

	return params, nil
}

// parseInnerList parses the space-separated quoted strings inside the
// component list parentheses.
func parseInnerList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var items []string
	for len(s) > 0 {
		s = strings.TrimLeft(s, " ")
		if len(s) == 0 {
			break
		}
		if s[0] != '"' {
			return nil, fmt.Errorf("%w: component identifier not quoted", ErrFormat)
		}
		end := strings.IndexByte(s[1:], '"')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated component identifier", ErrFormat)
		}
		items = append(items, s[1:end+1])
		s = s[end+2:]
	}
	return items, nil
}

// findSignatureEntry locates a labeled member in an RFC 8941
// dictionary header (Signature or Signature-Input). An empty label
// selects the first member.
func findSignatureEntry(header, label string) (string, string, error) {
	for _, entry := range splitQuoteAware(header, ',') {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if label == "" || key == label {
			return key, value, nil
		}
	}
	return "", "", fmt.Errorf("%w: signature label %q not found", ErrFormat, label)
}

// decodeSignatureValue decodes an RFC 8941 byte sequence (":base64:")
// into raw signature bytes.
func decodeSignatureValue(value string) ([]byte, error) {
	if len(value) < 2 || value[0] != ':' || value[len(value)-1] != ':' {
		return nil, fmt.Errorf("%w: signature value not a byte sequence", ErrFormat)
	}
	decoded, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 in signature", ErrFormat)
	}
	return decoded, nil
}

// splitQuoteAware splits s on delim while respecting "..." quoted
// regions, including backslash-escaped quotes inside them. Parts are
// trimmed of whitespace; empty parts are skipped.
func splitQuoteAware(s string, delim byte) []string {
	var result []string
	var part strings.Builder
	inQuote := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inQuote {
			if ch == '\\' && i+1 < len(s) {
				part.WriteByte(ch)
				i++
				part.WriteByte(s[i])
				continue
			}
			if ch == '"' {
				inQuote = false
			}
			part.WriteByte(ch)
			continue
		}

		switch ch {
		case '"':
			inQuote = true
			part.WriteByte(ch)
		case delim:
			if p := strings.TrimSpace(part.String()); p != "" {
				result = append(result, p)
			}
			part.Reset()
		default:
			part.WriteByte(ch)
		}
	}

	if p := strings.TrimSpace(part.String()); p != "" {
		result = append(result, p)
	}
	return result
}

// quoteStructuredField produces an RFC 8941 quoted-string. Only
// backslash and double-quote are escaped (Section 3.3.3).
func quoteStructuredField(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// unquoteStructuredField removes surrounding quotes and unescapes
// RFC 8941 escape sequences.
func unquoteStructuredField(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
