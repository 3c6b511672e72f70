// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"errors"
	"testing"
)

func populatedRegistry(t *testing.T, count int) *Registry {
	t.Helper()

	registry := New(Options{})
	for i := 0; i < count; i++ {
		record := testRecord(t, string(rune('a'+i)))
		record.Version = uint64(i + 1)
		if _, err := registry.Register(context.Background(), record); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return registry
}

func TestSnapshotRoundTrip(t *testing.T) {
	secret := []byte("operator-secret")

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			source := populatedRegistry(t, 5)

			snapshot, err := ExportSnapshot(source, secret, tag)
			if err != nil {
				t.Fatalf("ExportSnapshot: %v", err)
			}

			target := New(Options{})
			applied, err := ImportSnapshot(context.Background(), target, secret, snapshot)
			if err != nil {
				t.Fatalf("ImportSnapshot: %v", err)
			}
			if applied != 5 {
				t.Errorf("applied = %d, want 5", applied)
			}

			want := source.List()
			got := target.List()
			if len(got) != len(want) {
				t.Fatalf("imported %d records, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].KeyID != want[i].KeyID ||
					got[i].Version != want[i].Version ||
					string(got[i].PublicKey) != string(want[i].PublicKey) {
					t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestSnapshotWrongSecret(t *testing.T) {
	source := populatedRegistry(t, 2)
	snapshot, err := ExportSnapshot(source, []byte("right"), CompressionZstd)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	if _, err := ImportSnapshot(context.Background(), New(Options{}), []byte("wrong"), snapshot); err == nil {
		t.Fatal("import with wrong secret succeeded")
	}
}

func TestSnapshotTamperDetected(t *testing.T) {
	source := populatedRegistry(t, 2)
	secret := []byte("operator-secret")
	snapshot, err := ExportSnapshot(source, secret, CompressionZstd)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	// Flipping any byte, header or ciphertext, must fail import:
	// the header is authenticated as AAD.
	for _, offset := range []int{5, len(snapshot) - 1} {
		mutated := append([]byte(nil), snapshot...)
		mutated[offset] ^= 0x01
		if _, err := ImportSnapshot(context.Background(), New(Options{}), secret, mutated); err == nil {
			t.Errorf("import of snapshot tampered at offset %d succeeded", offset)
		}
	}
}

func TestSnapshotRejectsMalformed(t *testing.T) {
	registry := New(Options{})
	secret := []byte("s")

	if _, err := ImportSnapshot(context.Background(), registry, secret, []byte("short")); !errors.Is(err, ErrSnapshotFormat) {
		t.Errorf("truncated err = %v, want ErrSnapshotFormat", err)
	}

	bogus := make([]byte, 128)
	copy(bogus, "XXXX")
	if _, err := ImportSnapshot(context.Background(), registry, secret, bogus); !errors.Is(err, ErrSnapshotFormat) {
		t.Errorf("bad magic err = %v, want ErrSnapshotFormat", err)
	}
}

func TestSnapshotImportKeepsNewerVersions(t *testing.T) {
	ctx := context.Background()
	secret := []byte("operator-secret")

	source := New(Options{})
	old := testRecord(t, "shared")
	old.Version = 2
	if _, err := source.Register(ctx, old); err != nil {
		t.Fatalf("Register: %v", err)
	}
	snapshot, err := ExportSnapshot(source, secret, CompressionZstd)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	// Target already rotated past the snapshot: import must not
	// regress it.
	target := New(Options{})
	newer := testRecord(t, "shared")
	newer.Version = 5
	if _, err := target.Register(ctx, newer); err != nil {
		t.Fatalf("Register: %v", err)
	}

	applied, err := ImportSnapshot(ctx, target, secret, snapshot)
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if applied != 0 {
		t.Errorf("applied = %d, want 0", applied)
	}
	got, _ := target.Get("shared")
	if got.Version != 5 {
		t.Errorf("version = %d, want 5 preserved", got.Version)
	}

	// The reverse direction replaces: a stale target record is
	// upgraded by a newer snapshot.
	stale := New(Options{})
	behind := testRecord(t, "shared")
	behind.Version = 1
	if _, err := stale.Register(ctx, behind); err != nil {
		t.Fatalf("Register: %v", err)
	}
	applied, err = ImportSnapshot(ctx, stale, secret, snapshot)
	if err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	got, _ = stale.Get("shared")
	if got.Version != 2 {
		t.Errorf("version = %d, want 2 from snapshot", got.Version)
	}
}
