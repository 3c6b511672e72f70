// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree framework for meridian-keytool.
//
// Commands are declared as a tree of [Command] values with pflag flag
// sets. Dispatch walks the tree by positional arguments, parses flags
// for the selected command, and prints structured help with typo
// suggestions for unknown commands and flags.
package cli
