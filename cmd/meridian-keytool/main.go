// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError
		// with the desired exit code. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "meridian-keytool",
		Summary: "Manage Meridian signing keys",
		Description: `Manage Ed25519 signing keys for Meridian nodes.

Keys are registered as public-key records in the node's SQLite store
and served to the verification pipeline from an in-memory registry.
Private keys live in sealed key files (age scrypt ciphertext) and
never touch the store.`,
		Subcommands: []*cli.Command{
			keygenCommand(),
			registerCommand(),
			listCommand(),
			rotateCommand(),
			migrateCommand(),
			exportCommand(),
			importCommand(),
			versionCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Generate a sealed keypair",
				Command:     "meridian-keytool keygen -o operator.key",
			},
			{
				Description: "Register the public key on this node",
				Command:     "meridian-keytool register --key-file operator.key --owner ops",
			},
			{
				Description: "Rotate to a fresh key",
				Command:     "meridian-keytool rotate --key-file operator.key -o operator-new.key",
			},
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Printf("meridian-keytool %s\n", version.Info())
			return nil
		},
	}
}
