// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/clock"
	"github.com/meridian-foundation/meridian/lib/keyfile"
	"github.com/meridian-foundation/meridian/lib/keyring"
)

func rotateCommand() *cli.Command {
	connection := &nodeConnection{}
	var keyFile string
	var output string
	var newKeyID string
	var reason string
	var passphraseFile string

	return &cli.Command{
		Name:    "rotate",
		Summary: "Rotate a registered key to a fresh keypair",
		Description: `Generate a fresh keypair, build a rotation request signed with the
current private key, and apply it against the node's registry. The
swap is atomic: the old key stops verifying the instant the new one
is visible.

The new private key is sealed into --output under the same
passphrase as the old key file. Pass --new-key-id to change the key
ID during rotation; by default the record keeps its ID.`,
		Usage: "meridian-keytool rotate --key-file <file> -o <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rotate", pflag.ContinueOnError)
			connection.AddFlags(flagSet)
			flagSet.StringVar(&keyFile, "key-file", "", "sealed key file for the current key (required)")
			flagSet.StringVarP(&output, "output", "o", "", "path for the new sealed key file (required)")
			flagSet.StringVar(&newKeyID, "new-key-id", "", "key ID for the replacement record (default: keep the old ID)")
			flagSet.StringVar(&reason, "reason", "", "operator-facing reason recorded in the rotation event")
			flagSet.StringVar(&passphraseFile, "passphrase-file", "", "read the key file passphrase from this file")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Scheduled rotation keeping the key ID",
				Command:     "meridian-keytool rotate --key-file ops.key -o ops-new.key --reason scheduled",
			},
		},
		Run: func(args []string) error {
			if keyFile == "" || output == "" {
				return fmt.Errorf("--key-file and --output are required")
			}

			passphrase, err := readPassphrase(passphraseFile, false)
			if err != nil {
				return err
			}
			oldFile, err := keyfile.Load(keyFile, passphrase)
			if err != nil {
				return err
			}

			newPublic, newPrivate, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generating replacement keypair: %w", err)
			}

			request := keyring.NewRotationRequest(oldFile.KeyID, newKeyID, newPublic, reason, clock.Real())
			wire, err := request.Sign(oldFile.PrivateKey)
			if err != nil {
				return fmt.Errorf("signing rotation request: %w", err)
			}

			cfg, err := connection.load()
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
			coordinator := keyring.NewCoordinator(registry, keyring.CoordinatorConfig{
				MaxRequestAge: cfg.RotationMaxRequestAge(),
				Logger:        connection.logger,
			})

			record, err := coordinator.Rotate(ctx, wire)
			if err != nil {
				return err
			}

			newFile := &keyfile.File{
				KeyID:      record.KeyID,
				PrivateKey: newPrivate,
				CreatedAt:  time.Now().UTC(),
			}
			if err := keyfile.Save(output, newFile, passphrase); err != nil {
				return fmt.Errorf("rotation applied but sealing the new key failed "+
					"(the old key no longer verifies): %w", err)
			}

			fmt.Printf("rotated: %s -> %s (version %d)\n", oldFile.KeyID, record.KeyID, record.Version)
			fmt.Printf("key-file: %s\n", output)
			return nil
		},
	}
}
