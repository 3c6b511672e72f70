// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// meridian-keytool manages Ed25519 signing keys for Meridian nodes.
//
// Subcommands cover the full key lifecycle: generating sealed
// keypairs, registering public-key records in a node's SQLite store,
// applying signed rotation requests, migrating records into the
// store, and exporting/importing encrypted registry snapshots.
//
// Configuration is read from the file named by MERIDIAN_CONFIG or the
// --config flag. Private keys are stored at rest as age ciphertext;
// passphrases are prompted on the terminal with echo disabled, or
// read from a file via --passphrase-file for scripted use.
package main
