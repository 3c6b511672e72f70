// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-foundation/meridian/lib/clock"
	"github.com/meridian-foundation/meridian/lib/codec"
	"github.com/meridian-foundation/meridian/lib/httpsig"
)

// ErrRotationUnauthorized rejects a rotation request that fails the
// possession proof. Deliberately detail-free: the caller learns only
// "unauthorized", never which check failed. The specific reason is
// logged server-side.
var ErrRotationUnauthorized = errors.New("keyring: rotation unauthorized")

// signatureSize is the fixed size of an Ed25519 signature.
const signatureSize = ed25519.SignatureSize // 64 bytes

// RotationRequest asks the node to replace the key for OldKeyID.
// The wire form is the CBOR-encoded payload followed by a 64-byte
// Ed25519 signature from the old private key, proving possession of
// the identity being replaced.
type RotationRequest struct {
	// ID uniquely identifies this request for audit and event
	// correlation.
	ID string `cbor:"1,keyasint"`

	// OldKeyID names the currently active record being replaced.
	OldKeyID string `cbor:"2,keyasint"`

	// NewKeyID, when non-empty, moves the identity to a fresh key
	// ID. Empty keeps OldKeyID.
	NewKeyID string `cbor:"3,keyasint,omitempty"`

	// NewPublicKey is the 32-byte Ed25519 key taking over.
	NewPublicKey []byte `cbor:"4,keyasint"`

	// Reason is free-form operator context ("scheduled", "suspected
	// compromise").
	Reason string `cbor:"5,keyasint,omitempty"`

	// Created is when the request was signed. Requests outside the
	// coordinator's freshness window are rejected.
	Created time.Time `cbor:"6,keyasint"`

	// Nonce makes the request single-use.
	Nonce string `cbor:"7,keyasint"`
}

// NewRotationRequest fills a request with a fresh ID, nonce, and
// created timestamp.
func NewRotationRequest(oldKeyID, newKeyID string, newPublicKey []byte, reason string, clk clock.Clock) *RotationRequest {
	if clk == nil {
		clk = clock.Real()
	}
	return &RotationRequest{
		ID:           uuid.NewString(),
		OldKeyID:     oldKeyID,
		NewKeyID:     newKeyID,
		NewPublicKey: newPublicKey,
		Reason:       reason,
		Created:      clk.Now(),
		Nonce:        uuid.NewString(),
	}
}

// Sign encodes the request and appends the Ed25519 signature from
// the old private key, producing the wire form consumed by
// Coordinator.Rotate.
func (r *RotationRequest) Sign(oldPrivateKey ed25519.PrivateKey) ([]byte, error) {
	if len(oldPrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keyring: private key must be %d bytes, got %d",
			ed25519.PrivateKeySize, len(oldPrivateKey))
	}

	payload, err := codec.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("keyring: encoding rotation request: %w", err)
	}

	signature := ed25519.Sign(oldPrivateKey, payload)

	wire := make([]byte, len(payload)+signatureSize)
	copy(wire, payload)
	copy(wire[len(payload):], signature)
	return wire, nil
}

// splitRotationRequest separates the wire form into payload bytes
// and signature, and decodes the payload.
func splitRotationRequest(wire []byte) (*RotationRequest, []byte, []byte, error) {
	if len(wire) <= signatureSize {
		return nil, nil, nil, fmt.Errorf("keyring: rotation request too short for signature")
	}

	payload := wire[:len(wire)-signatureSize]
	signature := wire[len(wire)-signatureSize:]

	var request RotationRequest
	if err := codec.Unmarshal(payload, &request); err != nil {
		return nil, nil, nil, fmt.Errorf("keyring: decoding rotation request: %w", err)
	}
	return &request, payload, signature, nil
}

// RotationEvent describes a completed rotation for network
// propagation. Peers apply the event so the old key stops verifying
// cluster-wide, not just on the node that processed the request.
type RotationEvent struct {
	RequestID  string    `cbor:"1,keyasint"`
	OldKeyID   string    `cbor:"2,keyasint"`
	NewKeyID   string    `cbor:"3,keyasint"`
	Version    uint64    `cbor:"4,keyasint"`
	Durability string    `cbor:"5,keyasint"`
	OccurredAt time.Time `cbor:"6,keyasint"`
}

// EventPublisher receives rotation events. The network-propagation
// layer implements it; tests use an in-process recorder.
type EventPublisher interface {
	PublishRotation(ctx context.Context, event RotationEvent)
}

// CoordinatorConfig carries the optional collaborators of a
// Coordinator.
type CoordinatorConfig struct {
	// Nonces enforces single-use of rotation request nonces. Nil
	// means a private cache on the coordinator's clock.
	Nonces *httpsig.NonceCache

	// Clock drives the freshness window. Nil means clock.Real().
	Clock clock.Clock

	// MaxRequestAge bounds how old a rotation request may be. Zero
	// means 5 minutes.
	MaxRequestAge time.Duration

	// ClockSkew tolerates created timestamps slightly in the
	// future. Zero means 30 seconds.
	ClockSkew time.Duration

	// Publisher receives the event after a successful swap. Nil
	// disables propagation.
	Publisher EventPublisher

	// Logger records the detailed reason behind each rejection.
	// Nil means no logging.
	Logger *slog.Logger
}

// Coordinator validates signed rotation requests and applies them
// atomically against a Registry.
type Coordinator struct {
	registry      *Registry
	nonces        *httpsig.NonceCache
	clk           clock.Clock
	maxRequestAge time.Duration
	clockSkew     time.Duration
	publisher     EventPublisher
	logger        *slog.Logger
}

// NewCoordinator creates a Coordinator mutating registry.
func NewCoordinator(registry *Registry, cfg CoordinatorConfig) *Coordinator {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	nonces := cfg.Nonces
	if nonces == nil {
		nonces = httpsig.NewNonceCache(clk)
	}
	maxAge := cfg.MaxRequestAge
	if maxAge == 0 {
		maxAge = 5 * time.Minute
	}
	skew := cfg.ClockSkew
	if skew == 0 {
		skew = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Coordinator{
		registry:      registry,
		nonces:        nonces,
		clk:           clk,
		maxRequestAge: maxAge,
		clockSkew:     skew,
		publisher:     publisherOrNoop(cfg.Publisher),
		logger:        logger,
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishRotation(context.Context, RotationEvent) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// Rotate validates the wire-form rotation request and, if the
// possession proof holds, swaps the old record for the new one in a
// single registry critical section and publishes the event. All
// validation failures make no mutation and return
// ErrRotationUnauthorized without further detail.
func (c *Coordinator) Rotate(ctx context.Context, wire []byte) (PublicKeyRecord, error) {
	request, payload, signature, err := splitRotationRequest(wire)
	if err != nil {
		return c.reject("", "malformed request", err)
	}

	old, ok := c.registry.Get(request.OldKeyID)
	if !ok {
		return c.reject(request.OldKeyID, "unknown old key", nil)
	}
	if !old.Active(c.clk.Now()) {
		return c.reject(request.OldKeyID, "old key inactive", nil)
	}

	// Possession proof: the payload must verify against the
	// currently active record for OldKeyID.
	if !ed25519.Verify(ed25519.PublicKey(old.PublicKey), payload, signature) {
		return c.reject(request.OldKeyID, "signature mismatch", nil)
	}

	now := c.clk.Now()
	if request.Created.Before(now.Add(-c.maxRequestAge)) || request.Created.After(now.Add(c.clockSkew)) {
		return c.reject(request.OldKeyID, "request outside freshness window", nil)
	}
	if request.Nonce == "" {
		return c.reject(request.OldKeyID, "missing nonce", nil)
	}
	if !c.nonces.Observe(request.OldKeyID, request.Nonce, request.Created.Add(c.maxRequestAge)) {
		return c.reject(request.OldKeyID, "nonce already used", nil)
	}
	if len(request.NewPublicKey) != ed25519.PublicKeySize {
		return c.reject(request.OldKeyID, "new public key wrong length", nil)
	}

	newKeyID := request.NewKeyID
	if newKeyID == "" {
		newKeyID = request.OldKeyID
	}

	newRecord := PublicKeyRecord{
		KeyID:       newKeyID,
		PublicKey:   request.NewPublicKey,
		OwnerID:     old.OwnerID,
		Permissions: old.Permissions,
		CreatedAt:   now,
		ExpiresAt:   old.ExpiresAt,
		Version:     old.Version + 1,
	}

	// The swap is pinned to the version the possession proof was
	// checked against: a concurrent rotation, a removal, or a NewKeyID
	// colliding with another identity's record all fail here without
	// mutating state.
	durability, err := c.registry.Replace(ctx, request.OldKeyID, old.Version, newRecord)
	if err != nil {
		return c.reject(request.OldKeyID, "registry swap failed", err)
	}

	c.logger.Info("key rotated",
		"request_id", request.ID,
		"old_key_id", request.OldKeyID,
		"new_key_id", newKeyID,
		"version", newRecord.Version,
		"durability", durability.String(),
		"reason", request.Reason,
	)

	c.publisher.PublishRotation(ctx, RotationEvent{
		RequestID:  request.ID,
		OldKeyID:   request.OldKeyID,
		NewKeyID:   newKeyID,
		Version:    newRecord.Version,
		Durability: durability.String(),
		OccurredAt: now,
	})

	return newRecord.Clone(), nil
}

// reject logs the detailed reason and returns the uniform
// unauthorized error.
func (c *Coordinator) reject(keyID, reason string, err error) (PublicKeyRecord, error) {
	c.logger.Warn("rotation rejected",
		"old_key_id", keyID,
		"reason", reason,
		"error", err,
	)
	return PublicKeyRecord{}, ErrRotationUnauthorized
}
