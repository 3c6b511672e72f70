// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package keyring

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/meridian-foundation/meridian/lib/codec"
)

// Snapshot wire format:
//
//	[magic: 4 bytes "MRSN"] [version: 1 byte] [compression tag: 1 byte]
//	[uncompressed size: 4 bytes big-endian] [nonce: 24 bytes]
//	[ciphertext + Poly1305 tag]
//
// The plaintext is the CBOR-encoded record list, compressed per the
// tag. The header through the uncompressed size is authenticated as
// AAD, so tampering with any header byte fails decryption.

var snapshotMagic = [4]byte{'M', 'R', 'S', 'N'}

// snapshotVersion is the format version byte. Bump on any layout
// change.
const snapshotVersion byte = 0x01

// snapshotHeaderSize is magic + version + tag + uncompressed size.
const snapshotHeaderSize = 4 + 1 + 1 + 4

// hkdfInfoSnapshot is the HKDF-SHA256 info string deriving the
// snapshot sealing key from the operator secret. Changing it
// invalidates every existing snapshot.
var hkdfInfoSnapshot = []byte("meridian.keyring.snapshot.v1")

// ErrSnapshotFormat rejects snapshots with a bad magic, version, or
// truncated layout.
var ErrSnapshotFormat = errors.New("keyring: malformed snapshot")

// CompressionTag identifies the compression algorithm of a snapshot.
// Protocol constants: changing a value breaks snapshot compatibility.
type CompressionTag uint8

const (
	// CompressionNone stores the record list uncompressed. Chosen
	// automatically when compression does not shrink the payload.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd uses zstd at the default level. Best ratio
	// for the CBOR record list; the usual choice.
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a tag from its string form.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("keyring: unknown compression tag %q", name)
	}
}

// zstd encoder/decoder are reused across calls; both are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("keyring: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("keyring: zstd decoder initialization failed: " + err.Error())
	}
}

// ExportSnapshot serializes every record in the registry into an
// encrypted, compressed snapshot sealed under a key derived from
// secret. The snapshot is a point-in-time copy; concurrent mutations
// after the internal List are not included.
func ExportSnapshot(registry *Registry, secret []byte, tag CompressionTag) ([]byte, error) {
	payload, err := codec.Marshal(registry.List())
	if err != nil {
		return nil, fmt.Errorf("keyring: encoding snapshot records: %w", err)
	}
	if len(payload) > math.MaxUint32 {
		return nil, fmt.Errorf("keyring: snapshot payload too large")
	}

	compressed, tag, err := compressSnapshot(payload, tag)
	if err != nil {
		return nil, err
	}

	aead, err := snapshotAEAD(secret)
	if err != nil {
		return nil, err
	}

	header := make([]byte, snapshotHeaderSize)
	copy(header, snapshotMagic[:])
	header[4] = snapshotVersion
	header[5] = byte(tag)
	binary.BigEndian.PutUint32(header[6:], uint32(len(payload)))

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("keyring: generating snapshot nonce: %w", err)
	}

	out := make([]byte, snapshotHeaderSize+chacha20poly1305.NonceSizeX,
		snapshotHeaderSize+chacha20poly1305.NonceSizeX+len(compressed)+aead.Overhead())
	copy(out, header)
	copy(out[snapshotHeaderSize:], nonce[:])

	return aead.Seal(out, nonce[:], compressed, header), nil
}

// ImportSnapshot decrypts a snapshot and merges its records into the
// registry. Records already present with an equal or newer version
// are left untouched; older ones are replaced; absent ones are
// registered. Returns the number of records applied.
func ImportSnapshot(ctx context.Context, registry *Registry, secret, snapshot []byte) (int, error) {
	if len(snapshot) < snapshotHeaderSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return 0, fmt.Errorf("%w: truncated", ErrSnapshotFormat)
	}
	header := snapshot[:snapshotHeaderSize]
	if [4]byte(header[:4]) != snapshotMagic {
		return 0, fmt.Errorf("%w: bad magic", ErrSnapshotFormat)
	}
	if header[4] != snapshotVersion {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrSnapshotFormat, header[4])
	}
	tag := CompressionTag(header[5])
	uncompressedSize := int(binary.BigEndian.Uint32(header[6:]))

	aead, err := snapshotAEAD(secret)
	if err != nil {
		return 0, err
	}

	nonce := snapshot[snapshotHeaderSize : snapshotHeaderSize+chacha20poly1305.NonceSizeX]
	ciphertext := snapshot[snapshotHeaderSize+chacha20poly1305.NonceSizeX:]

	compressed, err := aead.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return 0, fmt.Errorf("keyring: snapshot decryption failed (wrong secret or tampered data): %w", err)
	}

	payload, err := decompressSnapshot(compressed, tag, uncompressedSize)
	if err != nil {
		return 0, err
	}

	var records []PublicKeyRecord
	if err := codec.Unmarshal(payload, &records); err != nil {
		return 0, fmt.Errorf("keyring: decoding snapshot records: %w", err)
	}

	applied := 0
	for _, record := range records {
		existing, ok := registry.Get(record.KeyID)
		switch {
		case ok && existing.Version >= record.Version:
			continue
		case ok:
			if _, err := registry.Replace(ctx, record.KeyID, existing.Version, record); err != nil {
				return applied, fmt.Errorf("keyring: importing record %q: %w", record.KeyID, err)
			}
		default:
			if _, err := registry.Register(ctx, record); err != nil {
				return applied, fmt.Errorf("keyring: importing record %q: %w", record.KeyID, err)
			}
		}
		applied++
	}
	return applied, nil
}

// snapshotAEAD derives the XChaCha20-Poly1305 sealing cipher from
// the operator secret via HKDF-SHA256.
func snapshotAEAD(secret []byte) (cipher.AEAD, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("keyring: snapshot secret is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfoSnapshot), key); err != nil {
		return nil, fmt.Errorf("keyring: deriving snapshot key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("keyring: creating snapshot cipher: %w", err)
	}
	return aead, nil
}

// compressSnapshot compresses payload under tag, falling back to
// CompressionNone when compression does not help. Returns the bytes
// and the tag actually used.
func compressSnapshot(payload []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	switch tag {
	case CompressionNone:
		return payload, CompressionNone, nil

	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(payload))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(payload, destination, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("keyring: lz4 compress: %w", err)
		}
		if written == 0 || written >= len(payload) {
			return payload, CompressionNone, nil
		}
		return destination[:written], CompressionLZ4, nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(payload, nil)
		if len(compressed) >= len(payload) {
			return payload, CompressionNone, nil
		}
		return compressed, CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("keyring: unsupported compression tag: %d", tag)
	}
}

// decompressSnapshot reverses compressSnapshot. The uncompressed
// size comes from the authenticated header and must match exactly.
func decompressSnapshot(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("%w: size %d does not match expected %d",
				ErrSnapshotFormat, len(compressed), uncompressedSize)
		}
		return compressed, nil

	case CompressionLZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("keyring: lz4 decompress: %w", err)
		}
		if read != uncompressedSize {
			return nil, fmt.Errorf("keyring: lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
		}
		return destination, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("keyring: zstd decompress: %w", err)
		}
		if len(result) != uncompressedSize {
			return nil, fmt.Errorf("keyring: zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("keyring: unsupported compression tag: %d", tag)
	}
}
