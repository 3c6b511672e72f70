// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meridian-foundation/meridian/lib/clock"
)

// failingStore errors on every operation, simulating a dead disk.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("disk gone")
}
func (failingStore) Put(context.Context, string, []byte) error { return fmt.Errorf("disk gone") }
func (failingStore) Delete(context.Context, string) error      { return fmt.Errorf("disk gone") }
func (failingStore) List(context.Context) ([]string, error)    { return nil, fmt.Errorf("disk gone") }

func TestRegisterAndGet(t *testing.T) {
	registry := New(Options{})
	record := testRecord(t, "k1")

	durability, err := registry.Register(context.Background(), record)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if durability != MemoryOnly {
		t.Errorf("durability = %v, want MemoryOnly without a store", durability)
	}

	got, ok := registry.Get("k1")
	if !ok {
		t.Fatal("Get(k1) missing")
	}
	if got.OwnerID != record.OwnerID || got.Version != record.Version {
		t.Errorf("got = %+v, want %+v", got, record)
	}

	if _, ok := registry.Get("ghost"); ok {
		t.Error("Get(ghost) found a record")
	}
}

func TestRegisterRejectsDuplicateAndInvalid(t *testing.T) {
	registry := New(Options{})
	record := testRecord(t, "k1")

	if _, err := registry.Register(context.Background(), record); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := registry.Register(context.Background(), record); !errors.Is(err, ErrKeyExists) {
		t.Errorf("duplicate err = %v, want ErrKeyExists", err)
	}

	bad := record.Clone()
	bad.KeyID = "k2"
	bad.PublicKey = bad.PublicKey[:8]
	if _, err := registry.Register(context.Background(), bad); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("invalid err = %v, want ErrInvalidRecord", err)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	registry := New(Options{})
	record := testRecord(t, "k1")
	if _, err := registry.Register(context.Background(), record); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, _ := registry.Get("k1")
	got.PublicKey[0] ^= 0xFF
	got.Permissions[0] = "admin"

	again, _ := registry.Get("k1")
	if again.PublicKey[0] != record.PublicKey[0] {
		t.Error("mutating a returned record corrupted the cache")
	}
	if again.Permissions[0] != record.Permissions[0] {
		t.Error("mutating returned permissions corrupted the cache")
	}

	// The registry also must not alias the caller's slices.
	record.PublicKey[0] ^= 0xFF
	final, _ := registry.Get("k1")
	if final.PublicKey[0] != again.PublicKey[0] {
		t.Error("cache aliases the caller's record")
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	registry := NewWithStore(ctx, store, Options{})
	record := testRecord(t, "k1")
	durability, err := registry.Register(ctx, record)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if durability != Durable {
		t.Errorf("durability = %v, want Durable", durability)
	}

	// Simulated restart: a fresh registry over the same store.
	reopened := NewWithStore(ctx, store, Options{})
	got, ok := reopened.Get("k1")
	if !ok {
		t.Fatal("record lost across restart")
	}
	if got.OwnerID != record.OwnerID || string(got.PublicKey) != string(record.PublicKey) {
		t.Errorf("reloaded record = %+v, want %+v", got, record)
	}
}

func TestStoreFailureDegradesNotFails(t *testing.T) {
	ctx := context.Background()

	// Construction over a dead store must still succeed with zero
	// records.
	registry := NewWithStore(ctx, failingStore{}, Options{})
	if registry.Len() != 0 {
		t.Fatalf("Len = %d, want 0", registry.Len())
	}

	// Mutations succeed at MemoryOnly durability.
	durability, err := registry.Register(ctx, testRecord(t, "k1"))
	if err != nil {
		t.Fatalf("Register over dead store: %v", err)
	}
	if durability != MemoryOnly {
		t.Errorf("durability = %v, want MemoryOnly", durability)
	}

	// And the record still verifies.
	if _, err := registry.VerifyKey("k1"); err != nil {
		t.Errorf("VerifyKey after degraded register: %v", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	registry := NewWithStore(ctx, store, Options{})

	if _, err := registry.Register(ctx, testRecord(t, "k1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	durability, err := registry.Remove(ctx, "k1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if durability != Durable {
		t.Errorf("durability = %v, want Durable", durability)
	}
	if _, ok := registry.Get("k1"); ok {
		t.Error("record still cached after Remove")
	}
	if store.Len() != 0 {
		t.Error("record still stored after Remove")
	}

	// Removing an absent key is not an error.
	if _, err := registry.Remove(ctx, "ghost"); err != nil {
		t.Errorf("Remove(ghost): %v", err)
	}
}

func TestReplaceRequiresExistingOld(t *testing.T) {
	registry := New(Options{})
	if _, err := registry.Replace(context.Background(), "ghost", 1, testRecord(t, "k2")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceRejectsOccupiedDestination(t *testing.T) {
	ctx := context.Background()
	registry := New(Options{})

	first := testRecord(t, "k1")
	second := testRecord(t, "k2")
	if _, err := registry.Register(ctx, first); err != nil {
		t.Fatalf("Register(k1): %v", err)
	}
	if _, err := registry.Register(ctx, second); err != nil {
		t.Fatalf("Register(k2): %v", err)
	}

	// A replacement may change its own key ID, but never onto an ID
	// another record already holds.
	replacement := testRecord(t, "k2")
	replacement.Version = 2
	if _, err := registry.Replace(ctx, "k1", 1, replacement); !errors.Is(err, ErrKeyIDTaken) {
		t.Fatalf("err = %v, want ErrKeyIDTaken", err)
	}

	// Both records are untouched by the rejected swap.
	got1, ok := registry.Get("k1")
	if !ok || got1.OwnerID != first.OwnerID || got1.Version != 1 {
		t.Fatalf("k1 = %+v ok=%v, want original record", got1, ok)
	}
	got2, ok := registry.Get("k2")
	if !ok || got2.OwnerID != second.OwnerID {
		t.Fatalf("k2 = %+v ok=%v, want original record", got2, ok)
	}
}

func TestReplaceRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	registry := New(Options{})

	if _, err := registry.Register(ctx, testRecord(t, "k1")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	updated := testRecord(t, "k1")
	updated.Version = 2
	if _, err := registry.Replace(ctx, "k1", 1, updated); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// A second swap pinned to the already-superseded version loses.
	stale := testRecord(t, "k1")
	stale.Version = 2
	if _, err := registry.Replace(ctx, "k1", 1, stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}

	got, ok := registry.Get("k1")
	if !ok || got.Version != 2 || got.OwnerID != updated.OwnerID {
		t.Fatalf("record = %+v ok=%v, want first replacement intact", got, ok)
	}
}

func TestReplaceAtomicUnderConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	registry := New(Options{})

	old := testRecord(t, "identity")
	old.Version = 1
	if _, err := registry.Register(ctx, old); err != nil {
		t.Fatalf("Register: %v", err)
	}

	updated := testRecord(t, "identity")
	updated.Version = 2

	// Readers hammer the registry while one writer swaps the
	// record. Every read must observe exactly one version of the
	// identity, never zero.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan string, 64)

	for reader := 0; reader < 8; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				record, ok := registry.Get("identity")
				if !ok {
					select {
					case errs <- "reader observed no active record":
					default:
					}
					return
				}
				if record.Version != 1 && record.Version != 2 {
					select {
					case errs <- fmt.Sprintf("reader observed version %d", record.Version):
					default:
					}
					return
				}
			}
		}()
	}

	if _, err := registry.Replace(ctx, "identity", 1, updated); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	select {
	case msg := <-errs:
		t.Fatal(msg)
	default:
	}

	got, ok := registry.Get("identity")
	if !ok || got.Version != 2 {
		t.Fatalf("post-replace record = %+v ok=%v, want version 2", got, ok)
	}
}

func TestVerifyKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Unix(1700000000, 0))
	registry := New(Options{Clock: clk})

	record := testRecord(t, "k1")
	record.ExpiresAt = clk.Now().Add(time.Hour)
	if _, err := registry.Register(ctx, record); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := registry.VerifyKey("k1"); err != nil {
		t.Errorf("VerifyKey active: %v", err)
	}
	if _, err := registry.VerifyKey("ghost"); err == nil {
		t.Error("VerifyKey(ghost) succeeded")
	}

	clk.Advance(2 * time.Hour)
	if _, err := registry.VerifyKey("k1"); err == nil {
		t.Error("VerifyKey succeeded past expiry")
	}

	revoked := testRecord(t, "k2")
	revoked.Revoked = true
	if _, err := registry.Register(ctx, revoked); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := registry.VerifyKey("k2"); err == nil {
		t.Error("VerifyKey succeeded for revoked key")
	}
}

func TestListSorted(t *testing.T) {
	ctx := context.Background()
	registry := New(Options{})
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if _, err := registry.Register(ctx, testRecord(t, id)); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	records := registry.List()
	if len(records) != 3 {
		t.Fatalf("List returned %d records, want 3", len(records))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if records[i].KeyID != want {
			t.Errorf("records[%d] = %q, want %q", i, records[i].KeyID, want)
		}
	}
}
