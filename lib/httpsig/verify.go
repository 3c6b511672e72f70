// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package httpsig

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/meridian-foundation/meridian/lib/clock"
)

// KeyDirectory resolves a key ID to the Ed25519 public key that is
// currently valid for it. Implementations return an error for
// unknown, revoked, or expired keys; the verifier does not
// distinguish those cases in its result (all are key-resolution
// failures), though the wrapped error is preserved for diagnostics.
//
// The node's public-key registry satisfies this interface.
type KeyDirectory interface {
	VerifyKey(keyID string) (ed25519.PublicKey, error)
}

// CheckID names one stage of the verification pipeline.
type CheckID string

const (
	// CheckFormat parses the Signature-Input and Signature headers.
	CheckFormat CheckID = "format"

	// CheckKey resolves the declared keyid through the KeyDirectory.
	CheckKey CheckID = "key"

	// CheckSignature recomputes the canonical message from the
	// actual request and verifies the Ed25519 signature.
	CheckSignature CheckID = "signature"

	// CheckReplay validates the created timestamp window and nonce
	// single-use.
	CheckReplay CheckID = "replay"

	// CheckPolicy enforces required components, content digest, and
	// custom rules.
	CheckPolicy CheckID = "policy"
)

// Check records the outcome of one pipeline stage.
type Check struct {
	ID     CheckID
	Passed bool

	// Err carries the stage's failure detail. Nil when Passed.
	Err error
}

// Result is the structured outcome of one verification call. The
// pipeline short-circuits on the first failing check, but Checks
// retains every stage computed up to that point so callers can log
// exactly how far a request got.
//
// Each Verify call is independent: no state is carried between
// requests beyond the key directory and the nonce cache.
type Result struct {
	// Checks lists each executed stage in pipeline order.
	Checks []Check

	// Failure is nil for a valid request; otherwise it wraps exactly
	// one taxonomy sentinel (ErrFormat, ErrKeyNotFound,
	// ErrCryptographicMismatch, ErrReplayDetected,
	// ErrPolicyViolation).
	Failure error

	// KeyID is the key the signature declared, once format parsing
	// succeeds.
	KeyID string

	// Policy is the name of the policy the request was evaluated
	// under.
	Policy string

	// Envelope holds the parsed signature parameters once format
	// parsing succeeds.
	Envelope *Envelope
}

// Valid reports whether every check passed.
func (r *Result) Valid() bool { return r.Failure == nil }

// pass appends a passing check.
func (r *Result) pass(id CheckID) {
	r.Checks = append(r.Checks, Check{ID: id, Passed: true})
}

// fail appends a failing check and records the terminal failure.
func (r *Result) fail(id CheckID, err error) *Result {
	r.Checks = append(r.Checks, Check{ID: id, Err: err})
	r.Failure = err
	return r
}

// nonceRetentionFallback bounds nonce retention for policies that
// require nonces but set no timestamp age.
const nonceRetentionFallback = time.Hour

// defaultClockSkew tolerates modest clock disagreement between
// clients and the node when checking created timestamps.
const defaultClockSkew = 30 * time.Second

// VerifierConfig carries the optional collaborators of a Verifier.
type VerifierConfig struct {
	// Policies is the policy set to resolve policy names against.
	// Nil means a fresh set containing only the built-ins.
	Policies *PolicySet

	// Nonces tracks nonce single-use. Nil means a new cache on the
	// verifier's clock.
	Nonces *NonceCache

	// Clock supplies the current time for replay checks. Nil means
	// clock.Real().
	Clock clock.Clock

	// ClockSkew is how far into the future a created timestamp may
	// lie before it is rejected. Zero means defaultClockSkew.
	ClockSkew time.Duration

	// Logger receives warnings for failed cryptographic checks and
	// replay rejections. Nil means no logging.
	Logger *slog.Logger
}

// Verifier validates signed requests against the node's public-key
// registry and a verification policy. Safe for concurrent use; each
// Verify call is independent.
type Verifier struct {
	directory KeyDirectory
	policies  *PolicySet
	nonces    *NonceCache
	clk       clock.Clock
	clockSkew time.Duration
	logger    *slog.Logger
}

// NewVerifier creates a Verifier resolving keys through directory.
func NewVerifier(directory KeyDirectory, cfg VerifierConfig) *Verifier {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	policies := cfg.Policies
	if policies == nil {
		policies = NewPolicySet()
	}
	nonces := cfg.Nonces
	if nonces == nil {
		nonces = NewNonceCache(clk)
	}
	skew := cfg.ClockSkew
	if skew == 0 {
		skew = defaultClockSkew
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Verifier{
		directory: directory,
		policies:  policies,
		nonces:    nonces,
		clk:       clk,
		clockSkew: skew,
		logger:    logger,
	}
}

// Verify runs the full check pipeline on r under the named policy:
// format → key → signature → replay → policy. The first failing
// check terminates the pipeline; the Result still lists every check
// computed.
func (v *Verifier) Verify(r *http.Request, policyName string) *Result {
	result := &Result{Policy: policyName}

	policy, err := v.policies.Get(policyName)
	if err != nil {
		result.Failure = err
		return result
	}

	// Format: parse the signature headers.
	params, signature, err := parseSignatureHeaders(r)
	if err != nil {
		return result.fail(CheckFormat, err)
	}
	result.KeyID = params.keyID
	result.Envelope = &Envelope{
		KeyID:      params.keyID,
		Algorithm:  AlgorithmEd25519,
		Created:    params.created,
		Nonce:      params.nonce,
		Components: params.components,
		Signature:  signature,
	}
	result.pass(CheckFormat)

	// Key: resolve the declared key ID.
	publicKey, err := v.directory.VerifyKey(params.keyID)
	if err != nil {
		return result.fail(CheckKey, fmt.Errorf("%w: %v", ErrKeyNotFound, err))
	}
	result.pass(CheckKey)

	// Signature: recompute the canonical message from the actual
	// request using the component list the signature declares — not
	// a fixed list — and verify.
	base, _, err := canonicalMessage(r, params)
	if err != nil {
		return result.fail(CheckSignature, fmt.Errorf("%w: %v", ErrCryptographicMismatch, err))
	}
	if !ed25519.Verify(publicKey, base, signature) {
		v.logger.Warn("signature verification failed",
			"key_id", params.keyID,
			"policy", policyName,
		)
		return result.fail(CheckSignature, ErrCryptographicMismatch)
	}
	result.pass(CheckSignature)

	// Replay: timestamp freshness and nonce single-use. A policy
	// with neither a timestamp window nor a nonce requirement skips
	// the stage, and the skipped stage is omitted from the checks
	// rather than reported as passed.
	if policy.MaxTimestampAge > 0 || policy.VerifyNonce {
		if err := v.checkReplay(params, policy); err != nil {
			v.logger.Warn("replay check failed",
				"key_id", params.keyID,
				"policy", policyName,
				"error", err,
			)
			return result.fail(CheckReplay, err)
		}
		result.pass(CheckReplay)
	}

	// Policy: required components, content digest, custom rules.
	if err := v.checkPolicy(r, params, policy, result); err != nil {
		return result.fail(CheckPolicy, err)
	}
	result.pass(CheckPolicy)

	return result
}

// checkReplay enforces the freshness window and nonce single-use.
func (v *Verifier) checkReplay(params signatureParams, policy Policy) error {
	now := v.clk.Now()

	if policy.MaxTimestampAge > 0 {
		if params.created.Before(now.Add(-policy.MaxTimestampAge)) {
			return fmt.Errorf("%w: signature created %s ago exceeds %s",
				ErrReplayDetected, now.Sub(params.created).Round(time.Second), policy.MaxTimestampAge)
		}
		if params.created.After(now.Add(v.clockSkew)) {
			return fmt.Errorf("%w: signature created in the future", ErrReplayDetected)
		}
	}

	if policy.VerifyNonce {
		if params.nonce == "" {
			return fmt.Errorf("%w: policy requires a nonce", ErrReplayDetected)
		}
		retention := policy.MaxTimestampAge
		if retention == 0 {
			retention = nonceRetentionFallback
		}
		if !v.nonces.Observe(params.keyID, params.nonce, params.created.Add(retention)) {
			return fmt.Errorf("%w: nonce already used", ErrReplayDetected)
		}
	}

	return nil
}

// checkPolicy enforces covered-component requirements, the content
// digest, and custom rules, in that order.
func (v *Verifier) checkPolicy(r *http.Request, params signatureParams, policy Policy, result *Result) error {
	for _, required := range policy.RequiredComponents {
		if !slices.Contains(params.components, required) {
			return fmt.Errorf("%w: required component %q not covered", ErrPolicyViolation, required)
		}
	}

	if policy.VerifyContentDigest {
		if err := VerifyContentDigest(r); err != nil {
			return fmt.Errorf("%w: %v", ErrPolicyViolation, err)
		}
	}

	// Custom rules run last and may inspect every prior check.
	for _, rule := range policy.Rules {
		if err := rule(r, result); err != nil {
			return fmt.Errorf("%w: %v", ErrPolicyViolation, err)
		}
	}

	return nil
}

// parseSignatureHeaders extracts and parses the Signature-Input and
// Signature headers, returning the declared parameters and the raw
// signature bytes.
func parseSignatureHeaders(r *http.Request) (signatureParams, []byte, error) {
	inputHeader := r.Header.Get("Signature-Input")
	if inputHeader == "" {
		return signatureParams{}, nil, fmt.Errorf("%w: missing Signature-Input header", ErrFormat)
	}

	label, rawParams, err := findSignatureEntry(inputHeader, "")
	if err != nil {
		return signatureParams{}, nil, err
	}

	params, err := parseSignatureParams(rawParams)
	if err != nil {
		return signatureParams{}, nil, err
	}

	signatureHeader := r.Header.Get("Signature")
	if signatureHeader == "" {
		return signatureParams{}, nil, fmt.Errorf("%w: missing Signature header", ErrFormat)
	}

	_, rawSignature, err := findSignatureEntry(signatureHeader, label)
	if err != nil {
		return signatureParams{}, nil, err
	}

	signature, err := decodeSignatureValue(rawSignature)
	if err != nil {
		return signatureParams{}, nil, err
	}

	return params, signature, nil
}
