// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/keyfile"
	"github.com/meridian-foundation/meridian/lib/keyring"
)

func keygenCommand() *cli.Command {
	var output string
	var keyID string
	var passphraseFile string

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an Ed25519 keypair sealed in a key file",
		Description: `Generate a fresh Ed25519 keypair and seal the private key into an
age-encrypted key file. The key ID defaults to the BLAKE3 fingerprint
of the public key; pass --key-id to choose your own.

The public key and key ID are printed to stdout for registration.`,
		Usage: "meridian-keytool keygen -o <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVarP(&output, "output", "o", "", "path for the sealed key file (required)")
			flagSet.StringVar(&keyID, "key-id", "", "key ID to embed (default: public key fingerprint)")
			flagSet.StringVar(&passphraseFile, "passphrase-file", "", "read the passphrase from this file instead of prompting")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Generate a key with a chosen ID",
				Command:     "meridian-keytool keygen -o ops.key --key-id ops-primary",
			},
		},
		Run: func(args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			public, private, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generating keypair: %w", err)
			}

			if keyID == "" {
				keyID = keyring.Fingerprint(public)
			}

			passphrase, err := readPassphrase(passphraseFile, true)
			if err != nil {
				return err
			}

			file := &keyfile.File{
				KeyID:      keyID,
				PrivateKey: private,
				CreatedAt:  time.Now().UTC(),
			}
			if err := keyfile.Save(output, file, passphrase); err != nil {
				return err
			}

			fmt.Printf("key-id: %s\n", keyID)
			fmt.Printf("public-key: %s\n", base64.StdEncoding.EncodeToString(public))
			fmt.Printf("fingerprint: %s\n", keyring.Fingerprint(public))
			fmt.Printf("key-file: %s\n", output)
			return nil
		},
	}
}
