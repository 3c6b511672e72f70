// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyfile

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"

	"github.com/meridian-foundation/meridian/lib/codec"
)

// ErrPassphrase indicates the passphrase does not decrypt the file.
var ErrPassphrase = errors.New("keyfile: wrong passphrase or corrupted file")

// scryptWorkFactor is the age scrypt work factor (log2 N). Tests
// lower it to keep sealing fast.
var scryptWorkFactor = 18

// File is the decrypted content of a key file.
type File struct {
	// KeyID is the registry identity this key signs for.
	KeyID string `cbor:"1,keyasint"`

	// PrivateKey is the 64-byte Ed25519 private key.
	PrivateKey []byte `cbor:"2,keyasint"`

	// CreatedAt is when the key was generated.
	CreatedAt time.Time `cbor:"3,keyasint,omitempty"`
}

// Public returns the public half of the stored key.
func (f *File) Public() ed25519.PublicKey {
	return ed25519.PrivateKey(f.PrivateKey).Public().(ed25519.PublicKey)
}

// Save seals file to path as age ciphertext under passphrase. The
// file is written with 0600 permissions; an existing file is
// replaced.
func Save(path string, file *File, passphrase string) error {
	if len(file.PrivateKey) != ed25519.PrivateKeySize {
		return fmt.Errorf("keyfile: private key must be %d bytes, got %d",
			ed25519.PrivateKeySize, len(file.PrivateKey))
	}
	if passphrase == "" {
		return fmt.Errorf("keyfile: passphrase is required")
	}

	plaintext, err := codec.Marshal(file)
	if err != nil {
		return fmt.Errorf("keyfile: encoding key file: %w", err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("keyfile: creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(scryptWorkFactor)

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return fmt.Errorf("keyfile: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("keyfile: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("keyfile: finalizing encryption: %w", err)
	}

	if err := os.WriteFile(path, ciphertext.Bytes(), 0o600); err != nil {
		return fmt.Errorf("keyfile: writing %s: %w", path, err)
	}
	return nil
}

// Load opens the sealed key file at path with passphrase.
func Load(path, passphrase string) (*File, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyfile: reading %s: %w", path, err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("keyfile: creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPassphrase, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPassphrase, err)
	}

	var file File
	if err := codec.Unmarshal(plaintext, &file); err != nil {
		return nil, fmt.Errorf("keyfile: decoding key file: %w", err)
	}
	if len(file.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keyfile: stored key has %d bytes, want %d",
			len(file.PrivateKey), ed25519.PrivateKeySize)
	}
	return &file, nil
}
