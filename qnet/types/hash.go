// Package types holds the wire-level data model shared by every QNet
// subsystem: hashes, addresses, amounts, transactions and the two block
// tiers.
package types

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a collision-resistant digest.
const HashSize = 32

// Hash is an opaque 32-byte digest. It is used for block hashes, merkle
// roots, state roots and commit digests alike.
type Hash [HashSize]byte

// ZeroHash is the canonical empty hash, used as previous_hash for genesis.
var ZeroHash = Hash{}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Bytes returns a copy of the underlying bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// HashFromBytes builds a Hash from a byte slice, erroring if the length is wrong.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("types: invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a hex-encoded hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("types: invalid hash hex: %w", err)
	}
	return HashFromBytes(b)
}
