// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/keyring"
)

func exportCommand() *cli.Command {
	connection := &nodeConnection{}
	var output string
	var compression string
	var secretFile string

	return &cli.Command{
		Name:    "export",
		Summary: "Export the registry as an encrypted snapshot",
		Description: `Serialize every key record into an encrypted, compressed snapshot
for backup or node migration. The snapshot is sealed with
ChaCha20-Poly1305 under a key derived from the snapshot secret;
importing requires the same secret.`,
		Usage: "meridian-keytool export -o <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			connection.AddFlags(flagSet)
			flagSet.StringVarP(&output, "output", "o", "", "path for the snapshot file (required)")
			flagSet.StringVar(&compression, "compression", "", "payload compression: none, lz4, zstd (default: from config)")
			flagSet.StringVar(&secretFile, "secret-file", "", "snapshot secret file (default: snapshot.secret_file from the config)")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Nightly backup",
				Command:     "meridian-keytool export -o /var/backups/keys.snap",
			},
		},
		Run: func(args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			cfg, err := connection.load()
			if err != nil {
				return err
			}
			if compression == "" {
				compression = cfg.Snapshot.Compression
			}
			tag, err := keyring.ParseCompressionTag(compression)
			if err != nil {
				return err
			}

			secret, err := connection.secret(secretFile)
			if err != nil {
				return err
			}

			store, err := connection.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			registry := keyring.NewWithStore(ctx, store, keyring.Options{Logger: connection.logger})

			snapshot, err := keyring.ExportSnapshot(registry, secret, tag)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, snapshot, 0o600); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}

			fmt.Printf("exported %d record(s) to %s (%d bytes, %s)\n",
				registry.Len(), output, len(snapshot), tag)
			return nil
		},
	}
}

func importCommand() *cli.Command {
	connection := &nodeConnection{}
	var secretFile string

	return &cli.Command{
		Name:    "import",
		Summary: "Merge an encrypted snapshot into the registry",
		Description: `Decrypt a snapshot and merge its records into the node's registry
and store. Records already present at the same or a newer version
are left untouched; the command reports how many were applied.`,
		Usage: "meridian-keytool import <snapshot> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			connection.AddFlags(flagSet)
			flagSet.StringVar(&secretFile, "secret-file", "", "snapshot secret file (default: snapshot.secret_file from the config)")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Restore from a backup",
				Command:     "meridian-keytool import /var/backups/keys.snap",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one snapshot file argument is required")
			}

			store, err := connection.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			registry := keyring.NewWithStore(ctx, store, keyring.Options{Logger: connection.logger})

			applied, err := importSnapshotFile(ctx, connection, registry, args[0], secretFile)
			if err != nil {
				return err
			}

			fmt.Printf("applied %d record(s); registry now holds %d\n", applied, registry.Len())
			return nil
		},
	}
}

// importSnapshotFile reads, decrypts, and merges a snapshot file.
// Shared by "import" and "migrate --from-snapshot".
func importSnapshotFile(ctx context.Context, connection *nodeConnection, registry *keyring.Registry, path, secretFile string) (int, error) {
	secret, err := connection.secret(secretFile)
	if err != nil {
		return 0, err
	}

	snapshot, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading snapshot: %w", err)
	}

	return keyring.ImportSnapshot(ctx, registry, secret, snapshot)
}
