// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-foundation/meridian/lib/codec"
)

// MigrationReport summarizes one migration run. Failed counts are
// reported, never silently dropped; a later run retries them.
type MigrationReport struct {
	// Migrated is the number of records newly written to the store.
	Migrated int

	// Skipped is the number of records already present.
	Skipped int

	// Failed is the number of records that could not be written.
	Failed int
}

// Migrate copies every cached record absent from the store into it.
// Records already stored are left untouched, so the routine is
// idempotent and safe to run on every startup that newly gains a
// store. Per-record failures do not abort the remaining records.
func (r *Registry) Migrate(ctx context.Context) (MigrationReport, error) {
	if r.store == nil {
		return MigrationReport{}, fmt.Errorf("keyring: migration requires a store")
	}

	var report MigrationReport
	for keyID, record := range r.snapshotRecords() {
		_, err := r.store.Get(ctx, keyID)
		switch {
		case err == nil:
			report.Skipped++
			continue
		case !errors.Is(err, ErrNotFound):
			r.logger.Error("migration probe failed", "key_id", keyID, "error", err)
			report.Failed++
			continue
		}

		raw, err := codec.Marshal(record)
		if err != nil {
			r.logger.Error("migration encode failed", "key_id", keyID, "error", err)
			report.Failed++
			continue
		}
		if err := r.store.Put(ctx, keyID, raw); err != nil {
			r.logger.Error("migration write failed", "key_id", keyID, "error", err)
			report.Failed++
			continue
		}
		report.Migrated++
	}

	r.logger.Info("key migration completed",
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}
