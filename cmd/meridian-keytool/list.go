// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/keyring"
)

func listCommand() *cli.Command {
	connection := &nodeConnection{}

	return &cli.Command{
		Name:    "list",
		Summary: "List registered public-key records",
		Usage:   "meridian-keytool list [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			connection.AddFlags(flagSet)
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

			records := registry.List()
			if len(records) == 0 {
				fmt.Println("no keys registered")
				return nil
			}

			now := time.Now()
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "KEY ID\tOWNER\tVERSION\tSTATUS\tFINGERPRINT\tCREATED")
			for _, record := range records {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					record.KeyID,
					record.OwnerID,
					record.Version,
					recordStatus(record, now),
					keyring.Fingerprint(record.PublicKey),
					formatCreated(record.CreatedAt),
				)
			}
			return tw.Flush()
		},
	}
}

func recordStatus(record keyring.PublicKeyRecord, now time.Time) string {
	switch {
	case record.Revoked:
		return "revoked"
	case !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt):
		return "expired"
	default:
		return "active"
	}
}

func formatCreated(created time.Time) string {
	if created.IsZero() {
		return "-"
	}
	return created.UTC().Format(time.RFC3339)
}
