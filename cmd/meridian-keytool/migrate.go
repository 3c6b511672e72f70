// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/keyring"
)

func migrateCommand() *cli.Command {
	connection := &nodeConnection{}
	var fromSnapshot string
	var secretFile string

	return &cli.Command{
		Name:    "migrate",
		Summary: "Write unpersisted key records into the store",
		Description: `Persist every key record the registry holds that is missing from the
SQLite store. Records already present are skipped, so the command is
safe to re-run; it reports migrated, skipped, and failed counts.

With --from-snapshot, the snapshot's records are merged into the
registry first and then persisted. This is the recovery path for
records that were only ever held in memory.`,
		Usage: "meridian-keytool migrate [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
			connection.AddFlags(flagSet)
			flagSet.StringVar(&fromSnapshot, "from-snapshot", "", "merge this encrypted snapshot before migrating")
			flagSet.StringVar(&secretFile, "secret-file", "", "snapshot secret file (default: snapshot.secret_file from the config)")
			return flagSet
		},
		Run: func(args []string) error {
			store, err := connection.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			registry := keyring.NewWithStore(ctx, store, keyring.Options{Logger: connection.logger})

			if fromSnapshot != "" {
				applied, err := importSnapshotFile(ctx, connection, registry, fromSnapshot, secretFile)
				if err != nil {
					return err
				}
				fmt.Printf("merged %d record(s) from %s\n", applied, fromSnapshot)
			}

			report, err := registry.Migrate(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("migrated: %d, skipped: %d, failed: %d\n",
				report.Migrated, report.Skipped, report.Failed)
			if report.Failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
