// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/keyfile"
	"github.com/meridian-foundation/meridian/lib/keyring"
)

func registerCommand() *cli.Command {
	connection := &nodeConnection{}
	var keyFile string
	var publicKey string
	var keyID string
	var owner string
	var permissions []string
	var expiresIn time.Duration
	var passphraseFile string

	return &cli.Command{
		Name:    "register",
		Summary: "Register a public key in the node's store",
		Description: `Insert a public-key record into the node's SQLite store.

The public key comes from a sealed key file (--key-file, prompts for
its passphrase) or a base64 string (--public-key). The key ID
defaults to the ID embedded in the key file, then to the public key
fingerprint.`,
		Usage: "meridian-keytool register [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("register", pflag.ContinueOnError)
			connection.AddFlags(flagSet)
			flagSet.StringVar(&keyFile, "key-file", "", "sealed key file holding the keypair")
			flagSet.StringVar(&publicKey, "public-key", "", "base64 Ed25519 public key (alternative to --key-file)")
			flagSet.StringVar(&keyID, "key-id", "", "key ID for the record")
			flagSet.StringVar(&owner, "owner", "", "owner identity recorded on the key")
			flagSet.StringSliceVar(&permissions, "permission", nil, "permission to grant (repeatable)")
			flagSet.DurationVar(&expiresIn, "expires-in", 0, "lifetime of the key (0 means no expiry)")
			flagSet.StringVar(&passphraseFile, "passphrase-file", "", "read the key file passphrase from this file")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Register from a sealed key file",
				Command:     "meridian-keytool register --key-file ops.key --owner ops --permission read --permission write",
			},
			{
				Description: "Register a bare public key for 30 days",
				Command:     "meridian-keytool register --public-key mBz… --key-id ci-signer --expires-in 720h",
			},
		},
		Run: func(args []string) error {
			record, err := buildRecord(keyFile, publicKey, keyID, passphraseFile)
			if err != nil {
				return err
			}
			record.OwnerID = owner
			record.Permissions = permissions
			record.CreatedAt = time.Now().UTC()
			record.Version = 1
			if expiresIn > 0 {
				record.ExpiresAt = record.CreatedAt.Add(expiresIn)
			}

			store, err := connection.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			registry := keyring.NewWithStore(ctx, store, keyring.Options{Logger: connection.logger})

			durability, err := registry.Register(ctx, record)
			if err != nil {
				return err
			}

			fmt.Printf("registered: %s (%s)\n", record.KeyID, durability)
			return nil
		},
	}
}

// buildRecord assembles the public key and key ID from whichever
// source the user provided.
func buildRecord(keyFile, publicKey, keyID, passphraseFile string) (keyring.PublicKeyRecord, error) {
	var record keyring.PublicKeyRecord

	switch {
	case keyFile != "" && publicKey != "":
		return record, fmt.Errorf("--key-file and --public-key are mutually exclusive")

	case keyFile != "":
		passphrase, err := readPassphrase(passphraseFile, false)
		if err != nil {
			return record, err
		}
		file, err := keyfile.Load(keyFile, passphrase)
		if err != nil {
			return record, err
		}
		record.PublicKey = file.Public()
		record.KeyID = file.KeyID

	case publicKey != "":
		decoded, err := base64.StdEncoding.DecodeString(publicKey)
		if err != nil {
			return record, fmt.Errorf("decoding --public-key: %w", err)
		}
		if len(decoded) != ed25519.PublicKeySize {
			return record, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
		}
		record.PublicKey = decoded

	default:
		return record, fmt.Errorf("one of --key-file or --public-key is required")
	}

	if keyID != "" {
		record.KeyID = keyID
	}
	if record.KeyID == "" {
		record.KeyID = keyring.Fingerprint(record.PublicKey)
	}
	return record, nil
}
