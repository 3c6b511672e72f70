// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestDerivedComponents(t *testing.T) {
	r := httptest.NewRequest("GET", "https://Node.Example:8443/data/items?q=1&limit=5", nil)

	cases := []struct {
		id   string
		want string
	}{
		{ComponentMethod, "GET"},
		{ComponentTargetURI, "https://node.example:8443/data/items?q=1&limit=5"},
		{ComponentAuthority, "node.example:8443"},
		{ComponentPath, "/data/items"},
		{ComponentQuery, "?q=1&limit=5"},
		{ComponentScheme, "https"},
		{ComponentRequestTarget, "/data/items?q=1&limit=5"},
	}

	for _, tc := range cases {
		t.Run(tc.id, func(t *testing.T) {
			got, err := componentValue(tc.id, r)
			if err != nil {
				t.Fatalf("componentValue(%q): %v", tc.id, err)
			}
			if got != tc.want {
				t.Errorf("componentValue(%q) = %q, want %q", tc.id, got, tc.want)
			}
		})
	}
}

func TestEmptyPathAndQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "https://node.example", nil)

	path, err := componentValue(ComponentPath, r)
	if err != nil {
		t.Fatalf("componentValue(@path): %v", err)
	}
	if path != "/" {
		t.Errorf("@path = %q, want /", path)
	}

	query, err := componentValue(ComponentQuery, r)
	if err != nil {
		t.Fatalf("componentValue(@query): %v", err)
	}
	if query != "?" {
		t.Errorf("@query = %q, want ?", query)
	}
}

func TestHeaderComponents(t *testing.T) {
	r := httptest.NewRequest("POST", "https://node.example/submit", nil)
	r.Header.Set("Content-Type", "application/cbor")
	r.Header.Add("X-Meridian-Tag", "alpha")
	r.Header.Add("X-Meridian-Tag", "beta")

	got, err := componentValue("content-type", r)
	if err != nil {
		t.Fatalf("componentValue(content-type): %v", err)
	}
	if got != "application/cbor" {
		t.Errorf("content-type = %q", got)
	}

	got, err = componentValue("x-meridian-tag", r)
	if err != nil {
		t.Fatalf("componentValue(x-meridian-tag): %v", err)
	}
	if got != "alpha, beta" {
		t.Errorf("multi-value header = %q, want %q", got, "alpha, beta")
	}
}

func TestHostHeaderComesFromRequestHost(t *testing.T) {
	// net/http strips Host from the header map into Request.Host;
	// the component extractor must still resolve it.
	r := httptest.NewRequest("GET", "https://node.example/data", nil)

	got, err := componentValue("host", r)
	if err != nil {
		t.Fatalf("componentValue(host): %v", err)
	}
	if got != "node.example" {
		t.Errorf("host = %q, want node.example", got)
	}
}

func TestUnknownComponents(t *testing.T) {
	r := httptest.NewRequest("GET", "https://node.example/", nil)

	if _, err := componentValue("@bogus", r); !errors.Is(err, ErrMissingComponent) {
		t.Errorf("unknown derived component err = %v, want ErrMissingComponent", err)
	}
	if _, err := componentValue("x-absent", r); !errors.Is(err, ErrMissingComponent) {
		t.Errorf("absent header err = %v, want ErrMissingComponent", err)
	}
}
