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
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/meridian-foundation/meridian/lib/clock"
	"github.com/meridian-foundation/meridian/lib/codec"
)

// Registry errors.
var (
	// ErrKeyExists is returned by Register for an already-registered
	// key ID. Rotation is the path for replacing a live key.
	ErrKeyExists = errors.New("keyring: key ID already registered")

	// ErrStoreUnavailable marks persistence failures internally. It
	// is logged and reflected in DurabilityLevel, never surfaced to
	// the verification path.
	ErrStoreUnavailable = errors.New("keyring: store unavailable")

	// ErrVersionConflict is returned by Replace when the cached record
	// no longer carries the version the caller inspected. The caller
	// lost a race and must re-read before retrying.
	ErrVersionConflict = errors.New("keyring: record version conflict")

	// ErrKeyIDTaken is returned by Replace when the replacement names
	// a key ID that already belongs to another record.
	ErrKeyIDTaken = errors.New("keyring: replacement key ID already registered")
)

// DurabilityLevel reports how far a mutation reached: the store, or
// only the in-memory cache. Returning it explicitly lets callers and
// tests assert on degradation instead of scraping logs.
type DurabilityLevel int

const (
	// Durable means the mutation was written through to the store.
	Durable DurabilityLevel = iota

	// MemoryOnly means the mutation is live in the cache but did not
	// reach a store, either because the registry has none or because
	// the write failed. State at this level is lost on restart until
	// Migrate repairs it.
	MemoryOnly
)

func (d DurabilityLevel) String() string {
	switch d {
	case Durable:
		return "durable"
	case MemoryOnly:
		return "memory-only"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

// Options configures a Registry.
type Options struct {
	// Logger receives store-failure and lifecycle messages. Nil
	// means no logging.
	Logger *slog.Logger

	// Clock drives expiry evaluation in VerifyKey. Nil means
	// clock.Real().
	Clock clock.Clock
}

// Registry owns the canonical in-memory copy of every registered
// public-key record, optionally backed by a Store. All reads serve
// from the cache; mutations update the cache under the write lock
// and then write through to the store outside the lock, so a slow
// disk never blocks concurrent verification.
type Registry struct {
	logger *slog.Logger
	clk    clock.Clock
	store  Store

	mu      sync.RWMutex
	records map[string]PublicKeyRecord
}

// New creates a memory-only Registry. Records do not survive a
// restart; attach a store later by constructing a new registry and
// running Migrate, or use NewWithStore from the start.
func New(opts Options) *Registry {
	return &Registry{
		logger:  registryLogger(opts),
		clk:     registryClock(opts),
		records: make(map[string]PublicKeyRecord),
	}
}

// NewWithStore creates a Registry backed by store and loads every
// persisted record into the cache. A store failure during load is
// logged and treated as zero records: initialization never blocks
// node startup on a broken disk.
func NewWithStore(ctx context.Context, store Store, opts Options) *Registry {
	r := &Registry{
		logger:  registryLogger(opts),
		clk:     registryClock(opts),
		store:   store,
		records: make(map[string]PublicKeyRecord),
	}

	keys, err := store.List(ctx)
	if err != nil {
		r.logger.Error("key store unreadable, starting with zero records", "error", err)
		return r
	}

	loaded := 0
	for _, keyID := range keys {
		raw, err := store.Get(ctx, keyID)
		if err != nil {
			r.logger.Error("skipping unreadable key record", "key_id", keyID, "error", err)
			continue
		}
		var record PublicKeyRecord
		if err := codec.Unmarshal(raw, &record); err != nil {
			r.logger.Error("skipping undecodable key record", "key_id", keyID, "error", err)
			continue
		}
		r.records[record.KeyID] = record
		loaded++
	}

	r.logger.Info("key registry loaded", "records", loaded)
	return r
}

func registryLogger(opts Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registryClock(opts Options) clock.Clock {
	if opts.Clock != nil {
		return opts.Clock
	}
	return clock.Real()
}

// Register validates and inserts a new record. The cache insert is
// authoritative; the store write is best-effort and its outcome is
// reported in the DurabilityLevel.
func (r *Registry) Register(ctx context.Context, record PublicKeyRecord) (DurabilityLevel, error) {
	if err := record.Validate(); err != nil {
		return MemoryOnly, err
	}
	record = record.Clone()

	r.mu.Lock()
	if _, exists := r.records[record.KeyID]; exists {
		r.mu.Unlock()
		return MemoryOnly, fmt.Errorf("%w: %q", ErrKeyExists, record.KeyID)
	}
	r.records[record.KeyID] = record
	r.mu.Unlock()

	return r.persist(ctx, record), nil
}

// Remove deletes a record from the cache and best-effort from the
// store. Removing an unknown key ID is not an error.
func (r *Registry) Remove(ctx context.Context, keyID string) (DurabilityLevel, error) {
	r.mu.Lock()
	delete(r.records, keyID)
	r.mu.Unlock()

	if r.store == nil {
		return MemoryOnly, nil
	}
	if err := r.store.Delete(ctx, keyID); err != nil {
		r.logger.Error("key record delete not persisted",
			"key_id", keyID,
			"error", errors.Join(ErrStoreUnavailable, err),
		)
		return MemoryOnly, nil
	}
	return Durable, nil
}

// Replace atomically swaps the record for oldKeyID with newRecord in
// a single critical section: no reader ever observes both records or
// neither. This is the rotation primitive. The swap is a compare-and-
// swap on oldVersion: it fails with ErrVersionConflict when the cached
// record's version has moved since the caller read it, and with
// ErrKeyIDTaken when newRecord would claim a key ID already held by a
// different record.
func (r *Registry) Replace(ctx context.Context, oldKeyID string, oldVersion uint64, newRecord PublicKeyRecord) (DurabilityLevel, error) {
	if err := newRecord.Validate(); err != nil {
		return MemoryOnly, err
	}
	newRecord = newRecord.Clone()

	r.mu.Lock()
	current, exists := r.records[oldKeyID]
	if !exists {
		r.mu.Unlock()
		return MemoryOnly, fmt.Errorf("%w: %q", ErrNotFound, oldKeyID)
	}
	if current.Version != oldVersion {
		r.mu.Unlock()
		return MemoryOnly, fmt.Errorf("%w: %q is at version %d, not %d",
			ErrVersionConflict, oldKeyID, current.Version, oldVersion)
	}
	if newRecord.KeyID != oldKeyID {
		if _, taken := r.records[newRecord.KeyID]; taken {
			r.mu.Unlock()
			return MemoryOnly, fmt.Errorf("%w: %q", ErrKeyIDTaken, newRecord.KeyID)
		}
	}
	delete(r.records, oldKeyID)
	r.records[newRecord.KeyID] = newRecord
	r.mu.Unlock()

	if r.store == nil {
		return MemoryOnly, nil
	}

	// Store writes happen after the cache swap; a crash between the
	// two leaves the store briefly behind, which rotation event
	// propagation and Migrate both repair.
	durability := Durable
	if oldKeyID != newRecord.KeyID {
		if err := r.store.Delete(ctx, oldKeyID); err != nil {
			r.logger.Error("rotated-out record not deleted from store",
				"key_id", oldKeyID,
				"error", errors.Join(ErrStoreUnavailable, err),
			)
			durability = MemoryOnly
		}
	}
	if r.persist(ctx, newRecord) == MemoryOnly {
		durability = MemoryOnly
	}
	return durability, nil
}

// Get returns a copy of the record for keyID from the cache.
func (r *Registry) Get(keyID string) (PublicKeyRecord, bool) {
	r.mu.RLock()
	record, ok := r.records[keyID]
	r.mu.RUnlock()

	if !ok {
		return PublicKeyRecord{}, false
	}
	return record.Clone(), true
}

// List returns copies of every cached record, ordered by key ID.
func (r *Registry) List() []PublicKeyRecord {
	r.mu.RLock()
	records := make([]PublicKeyRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(records, func(a, b PublicKeyRecord) int {
		return strings.Compare(a.KeyID, b.KeyID)
	})
	return records
}

// Len returns the number of cached records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// VerifyKey resolves keyID to its Ed25519 public key for signature
// verification. Unknown, revoked, and expired keys all fail
// resolution. Satisfies the verifier's key directory interface.
func (r *Registry) VerifyKey(keyID string) (ed25519.PublicKey, error) {
	r.mu.RLock()
	record, ok := r.records[keyID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("keyring: no record for key %q", keyID)
	}
	if record.Revoked {
		return nil, fmt.Errorf("keyring: key %q is revoked", keyID)
	}
	if !record.Active(r.clk.Now()) {
		return nil, fmt.Errorf("keyring: key %q is expired", keyID)
	}
	return ed25519.PublicKey(slices.Clone(record.PublicKey)), nil
}

// snapshotRecords returns a point-in-time copy of the cache map.
func (r *Registry) snapshotRecords() map[string]PublicKeyRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.records)
}

// persist writes one record through to the store. Failures degrade
// to MemoryOnly and are logged, never returned: persistence trouble
// must not look like an authentication failure.
func (r *Registry) persist(ctx context.Context, record PublicKeyRecord) DurabilityLevel {
	if r.store == nil {
		return MemoryOnly
	}

	raw, err := codec.Marshal(record)
	if err != nil {
		r.logger.Error("key record not encodable", "key_id", record.KeyID, "error", err)
		return MemoryOnly
	}
	if err := r.store.Put(ctx, record.KeyID, raw); err != nil {
		r.logger.Error("key record not persisted",
			"key_id", record.KeyID,
			"error", errors.Join(ErrStoreUnavailable, err),
		)
		return MemoryOnly
	}
	return Durable
}
