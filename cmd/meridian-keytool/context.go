// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/meridian-foundation/meridian/cmd/meridian-keytool/cli"
	"github.com/meridian-foundation/meridian/lib/config"
	"github.com/meridian-foundation/meridian/lib/keyring"
	"github.com/meridian-foundation/meridian/lib/sqlitepool"
)

// nodeConnection manages the --config flag and the registry/store
// pair every store-touching subcommand needs.
type nodeConnection struct {
	ConfigPath string

	cfg    *config.Config
	logger *slog.Logger
}

// AddFlags registers the --config flag. MERIDIAN_CONFIG is the
// fallback when the flag is not given.
func (n *nodeConnection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&n.ConfigPath, "config", "", "path to meridian.yaml (default: $MERIDIAN_CONFIG)")
}

// load reads the configuration and builds the command logger.
func (n *nodeConnection) load() (*config.Config, error) {
	if n.cfg != nil {
		return n.cfg, nil
	}

	var cfg *config.Config
	var err error
	if n.ConfigPath != "" {
		cfg, err = config.LoadFile(n.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	n.cfg = cfg
	n.logger = cli.NewCommandLogger(cli.ParseLogLevel(cfg.Logging.Level))
	return cfg, nil
}

// openStore opens the node's SQLite key store per the configuration.
func (n *nodeConnection) openStore() (*keyring.SQLiteStore, error) {
	cfg, err := n.load()
	if err != nil {
		return nil, err
	}

	store, err := keyring.OpenSQLiteStore(sqlitepool.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   n.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening key store %s: %w", cfg.Store.Path, err)
	}
	return store, nil
}

// secret reads the snapshot secret from secretFile, falling back to
// the configured snapshot.secret_file. Trailing newlines are
// stripped so `echo secret > file` works.
func (n *nodeConnection) secret(secretFile string) ([]byte, error) {
	if secretFile == "" {
		cfg, err := n.load()
		if err != nil {
			return nil, err
		}
		secretFile = cfg.Snapshot.SecretFile
	}
	if secretFile == "" {
		return nil, fmt.Errorf("no snapshot secret: set --secret-file or snapshot.secret_file in the config")
	}

	data, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot secret: %w", err)
	}
	data = bytes.TrimRight(data, "\r\n")
	if len(data) == 0 {
		return nil, fmt.Errorf("snapshot secret file %s is empty", secretFile)
	}
	return data, nil
}

// readPassphrase obtains the key file passphrase. Precedence:
// --passphrase-file, then a line from piped stdin, then an
// interactive prompt with echo disabled. confirm adds a second
// prompt for newly chosen passphrases.
func readPassphrase(passphraseFile string, confirm bool) (string, error) {
	if passphraseFile != "" {
		data, err := os.ReadFile(passphraseFile)
		if err != nil {
			return "", fmt.Errorf("reading passphrase file: %w", err)
		}
		passphrase := string(bytes.TrimRight(data, "\r\n"))
		if passphrase == "" {
			return "", fmt.Errorf("passphrase file %s is empty", passphraseFile)
		}
		return passphrase, nil
	}

	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		// Stdin is piped — read one line without prompting.
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase from stdin: %w", err)
		}
		passphrase := strings.TrimRight(line, "\r\n")
		if passphrase == "" {
			return "", fmt.Errorf("passphrase is empty")
		}
		return passphrase, nil
	}

	// Interactive terminal — prompt with echo disabled.
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase is empty")
	}

	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase confirmation: %w", err)
	}

	if subtle.ConstantTimeCompare(first, second) != 1 {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}
