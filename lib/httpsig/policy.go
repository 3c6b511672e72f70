// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/tidwall/jsonc"
)

// Rule is a custom policy predicate. Rules run last in the check
// pipeline and may inspect the request and every prior check result.
// A non-nil error rejects the request as a policy violation.
type Rule func(r *http.Request, result *Result) error

// Policy is a named, immutable set of verification requirements.
// Built-in policies are fixed; custom policies are registered on a
// [PolicySet] and replaced only by re-registration, never edited in
// place.
type Policy struct {
	// Name identifies the policy in configuration and logs.
	Name string

	// RequiredComponents lists component identifiers that must appear
	// in the signature's covered components. The signature may cover
	// more; it may not cover less.
	RequiredComponents []string

	// MaxTimestampAge bounds how old a signature's created timestamp
	// may be. Zero disables the age check.
	MaxTimestampAge time.Duration

	// VerifyNonce requires a nonce parameter and enforces single use
	// within the freshness window.
	VerifyNonce bool

	// VerifyContentDigest requires a Content-Digest header matching a
	// freshly computed digest of the actual body.
	VerifyContentDigest bool

	// Rules are custom predicates evaluated after all built-in
	// checks.
	Rules []Rule
}

// Built-in policy names. The definitions are protocol constants:
// nodes in one deployment must agree on what "standard" means.
const (
	PolicyStrict   = "strict"
	PolicyStandard = "standard"
	PolicyLenient  = "lenient"
	PolicyLegacy   = "legacy"
)

// builtinPolicies returns fresh copies of the fixed built-in
// policies, ordered from most to least demanding. Each stricter
// policy's checks are a superset of the next — a request passing
// strict always passes standard and lenient.
func builtinPolicies() []Policy {
	return []Policy{
		{
			Name:                PolicyStrict,
			RequiredComponents:  []string{ComponentMethod, ComponentTargetURI, ComponentContentDigest},
			MaxTimestampAge:     2 * time.Minute,
			VerifyNonce:         true,
			VerifyContentDigest: true,
		},
		{
			Name:               PolicyStandard,
			RequiredComponents: []string{ComponentMethod, ComponentTargetURI},
			MaxTimestampAge:    5 * time.Minute,
			VerifyNonce:        true,
		},
		{
			Name:               PolicyLenient,
			RequiredComponents: []string{ComponentMethod},
			MaxTimestampAge:    15 * time.Minute,
		},
		{
			// Legacy exists for pre-signing clients migrating onto
			// the protocol: any structurally valid signature from a
			// registered key within an hour is accepted.
			Name:            PolicyLegacy,
			MaxTimestampAge: time.Hour,
		},
	}
}

// PolicySet holds the verification policies known to a node: the
// four built-ins plus any registered custom policies. Safe for
// concurrent use.
type PolicySet struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewPolicySet returns a PolicySet pre-populated with the built-in
// policies.
func NewPolicySet() *PolicySet {
	set := &PolicySet{policies: make(map[string]Policy)}
	for _, policy := range builtinPolicies() {
		set.policies[policy.Name] = policy
	}
	return set
}

// Register adds a custom policy. Registering an existing custom name
// replaces the policy wholesale — there is no in-place mutation.
// Built-in names cannot be shadowed.
func (s *PolicySet) Register(policy Policy) error {
	if policy.Name == "" {
		return fmt.Errorf("httpsig: policy name is required")
	}
	switch policy.Name {
	case PolicyStrict, PolicyStandard, PolicyLenient, PolicyLegacy:
		return fmt.Errorf("%w: %q", ErrBuiltinPolicy, policy.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.Name] = policy
	return nil
}

// Get returns the named policy.
func (s *PolicySet) Get(name string) (Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return policy, nil
}

// Names returns the names of all registered policies, built-in and
// custom, in unspecified order.
func (s *PolicySet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.policies))
	for name := range s.policies {
		names = append(names, name)
	}
	return names
}

// policyFile is the on-disk shape of a custom policy definition file.
// The file is JSONC: JSON with // comments and trailing commas, the
// same dialect used for Meridian pipeline definitions.
type policyFile struct {
	Policies []policyDefinition `json:"policies"`
}

type policyDefinition struct {
	Name                string   `json:"name"`
	RequiredComponents  []string `json:"required_components"`
	MaxTimestampAge     string   `json:"max_timestamp_age"`
	VerifyNonce         bool     `json:"verify_nonce"`
	VerifyContentDigest bool     `json:"verify_content_digest"`
}

// LoadPolicyFile reads custom policy definitions from a JSONC file
// and registers each on the set. Durations use Go syntax ("90s",
// "5m"). Returns the number of policies registered.
func LoadPolicyFile(set *PolicySet, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("httpsig: reading policy file: %w", err)
	}

	var file policyFile
	if err := json.Unmarshal(jsonc.ToJSON(raw), &file); err != nil {
		return 0, fmt.Errorf("httpsig: parsing policy file %s: %w", path, err)
	}

	for _, definition := range file.Policies {
		policy := Policy{
			Name:                definition.Name,
			RequiredComponents:  definition.RequiredComponents,
			VerifyNonce:         definition.VerifyNonce,
			VerifyContentDigest: definition.VerifyContentDigest,
		}
		if definition.MaxTimestampAge != "" {
			age, err := time.ParseDuration(definition.MaxTimestampAge)
			if err != nil {
				return 0, fmt.Errorf("httpsig: policy %q: invalid max_timestamp_age: %w", definition.Name, err)
			}
			policy.MaxTimestampAge = age
		}
		if err := set.Register(policy); err != nil {
			return 0, err
		}
	}

	return len(file.Policies), nil
}
