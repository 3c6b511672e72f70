// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/meridian-foundation/meridian/lib/sqlitepool"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLiteStore(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "keys.db"),
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestSQLiteStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store err = %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, "k1", []byte("record-one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "record-one" {
		t.Errorf("Get = %q, want record-one", got)
	}

	// Put replaces.
	if err := store.Put(ctx, "k1", []byte("record-two")); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, err = store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get after replace: %v", err)
	}
	if string(got) != "record-two" {
		t.Errorf("Get = %q, want record-two", got)
	}

	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, "ghost"); err != nil {
		t.Errorf("Delete(ghost): %v", err)
	}
}

func TestSQLiteStoreList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := store.Put(ctx, id, []byte(id)); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(keys) != len(want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestRegistryOverSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")

	store, err := OpenSQLiteStore(sqlitepool.Config{Path: path, PoolSize: 2})
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}

	registry := NewWithStore(ctx, store, Options{})
	record := testRecord(t, "k1")
	durability, err := registry.Register(ctx, record)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if durability != Durable {
		t.Errorf("durability = %v, want Durable", durability)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Full restart: new pool, new registry, same file.
	reopened, err := OpenSQLiteStore(sqlitepool.Config{Path: path, PoolSize: 2})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	registry2 := NewWithStore(ctx, reopened, Options{})
	got, ok := registry2.Get("k1")
	if !ok {
		t.Fatal("record lost across process restart")
	}
	if string(got.PublicKey) != string(record.PublicKey) || got.OwnerID != record.OwnerID {
		t.Errorf("reloaded record = %+v, want %+v", got, record)
	}
}
