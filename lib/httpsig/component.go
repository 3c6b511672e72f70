// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"fmt"
	"net/http"
	"strings"
)

// Derived component identifiers per RFC 9421 Section 2.2. Components
// not starting with "@" name request headers (lower-cased).
const (
	ComponentMethod        = "@method"
	ComponentTargetURI     = "@target-uri"
	ComponentAuthority     = "@authority"
	ComponentPath          = "@path"
	ComponentQuery         = "@query"
	ComponentScheme        = "@scheme"
	ComponentRequestTarget = "@request-target"
)

// ComponentContentDigest names the Content-Digest header as a covered
// component. It is a plain header component, listed here because the
// signer and the strict policy both reference it.
const ComponentContentDigest = "content-digest"

// componentValue extracts the value of a covered component from a
// request. Derived components start with "@"; anything else is a
// header field name. Header values are taken verbatim (no
// re-encoding) so independently implemented signers and verifiers
// agree bit-for-bit; multi-value headers join with ", ".
func componentValue(id string, r *http.Request) (string, error) {
	if strings.HasPrefix(id, "@") {
		return derivedComponentValue(id, r)
	}
	return headerComponentValue(id, r)
}

func derivedComponentValue(id string, r *http.Request) (string, error) {
	switch id {
	case ComponentMethod:
		return r.Method, nil

	case ComponentTargetURI:
		return targetURI(r), nil

	case ComponentAuthority:
		return authority(r), nil

	case ComponentPath:
		return pathOrSlash(r), nil

	case ComponentQuery:
		// RFC 9421 mandates the leading "?" even for empty queries.
		return "?" + r.URL.RawQuery, nil

	case ComponentScheme:
		return scheme(r), nil

	case ComponentRequestTarget:
		if r.URL.RawQuery != "" {
			return pathOrSlash(r) + "?" + r.URL.RawQuery, nil
		}
		return pathOrSlash(r), nil

	default:
		return "", fmt.Errorf("%w: unknown derived component %q", ErrMissingComponent, id)
	}
}

// headerComponentValue extracts a header field value per RFC 9421
// Section 2.1. The "host" header is special-cased because net/http
// stores it in Request.Host rather than the header map.
func headerComponentValue(id string, r *http.Request) (string, error) {
	values := r.Header[http.CanonicalHeaderKey(id)]

	if len(values) == 0 && strings.EqualFold(id, "host") && r.Host != "" {
		return r.Host, nil
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%w: header %q not present", ErrMissingComponent, id)
	}

	return strings.Join(values, ", "), nil
}

func pathOrSlash(r *http.Request) string {
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// authority returns the host[:port] component of the request.
func authority(r *http.Request) string {
	if r.Host != "" {
		return strings.ToLower(r.Host)
	}
	if r.URL != nil && r.URL.Host != "" {
		return strings.ToLower(r.URL.Host)
	}
	return ""
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if r.URL != nil && r.URL.Scheme != "" {
		return strings.ToLower(r.URL.Scheme)
	}
	return "http"
}

// targetURI reconstructs the full target URI: scheme, authority,
// path, and query.
func targetURI(r *http.Request) string {
	uri := scheme(r) + "://" + authority(r) + pathOrSlash(r)
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return uri
}
