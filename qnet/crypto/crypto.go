// Package crypto provides QNet's hashing, AEAD and KDF primitives, plus the
// post-quantum signature packet layout of spec.md §6. The signature scheme
// itself is policy (spec.md §9); this package defines the wire layout
// against a pluggable Signer/Verifier and ships a reference implementation
// over crypto/ed25519, whose keys (32 bytes) and signatures (64 bytes) keep
// ed25519's native sizes rather than the NIST-Level-3 lengths, since no
// dedicated post-quantum library was available to ground against (see
// DESIGN.md).
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/types"
)

// Digest computes the collision-resistant 32-byte Hash of b, used for
// transaction hashes, merkle nodes, commit hashes and block hashes alike.
func Digest(b []byte) types.Hash {
	return blake2b.Sum256(b)
}

// DigestConcat is a convenience for digest(value || nonce)-style commits.
func DigestConcat(parts ...[]byte) types.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // blake2b.New256 with nil key never errors
	}
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// PQ signature byte sizes per spec.md §6 (NIST Level 3).
const (
	PQPublicKeySize = 1952
	PQSignatureSize = 2420

	hybridTag = "hybrid:"
)

// Signer produces signatures over a message; Verifier checks them. QNet's
// core depends only on these interfaces — the concrete scheme is policy.
type Signer interface {
	Sign(message []byte) (signature []byte, err error)
	PublicKey() []byte
}

type Verifier interface {
	Verify(message, signature, publicKey []byte) bool
}

// EncodePacket lays out a signature packet as
// {signed_len, signature+message, pk_len, public_key}, per spec.md §6.
func EncodePacket(signatureAndMessage, publicKey []byte) []byte {
	buf := make([]byte, 0, 8+len(signatureAndMessage)+8+len(publicKey))
	buf = appendUvarint(buf, uint64(len(signatureAndMessage)))
	buf = append(buf, signatureAndMessage...)
	buf = appendUvarint(buf, uint64(len(publicKey)))
	buf = append(buf, publicKey...)
	return buf
}

// EncodeHybridPacket concatenates a post-quantum certificate with a fast
// elliptic signature, tagged with the "hybrid:" prefix (spec.md §6).
func EncodeHybridPacket(pqPacket, ellipticSig []byte) []byte {
	out := make([]byte, 0, len(hybridTag)+len(pqPacket)+8+len(ellipticSig))
	out = append(out, hybridTag...)
	out = append(out, pqPacket...)
	out = appendUvarint(out, uint64(len(ellipticSig)))
	out = append(out, ellipticSig...)
	return out
}

// IsHybrid reports whether a packet carries the leading "hybrid:" tag.
func IsHybrid(packet []byte) bool {
	return len(packet) >= len(hybridTag) && string(packet[:len(hybridTag)]) == hybridTag
}

// DecodePacket parses {signed_len, signature+message, pk_len, public_key}
// and rejects any packet whose internal lengths disagree with the
// container length, per spec.md §6.
func DecodePacket(packet []byte) (signatureAndMessage, publicKey []byte, err error) {
	rest := packet
	signedLen, n, err := readUvarint(rest)
	if err != nil {
		return nil, nil, qnerrors.Wrap(qnerrors.KindSecurity, "BadPacket", "cannot read signed_len", err)
	}
	rest = rest[n:]
	if uint64(len(rest)) < signedLen {
		return nil, nil, qnerrors.New(qnerrors.KindSecurity, "BadPacket", "signed_len exceeds container length")
	}
	signatureAndMessage = rest[:signedLen]
	rest = rest[signedLen:]

	pkLen, n, err := readUvarint(rest)
	if err != nil {
		return nil, nil, qnerrors.Wrap(qnerrors.KindSecurity, "BadPacket", "cannot read pk_len", err)
	}
	rest = rest[n:]
	if uint64(len(rest)) != pkLen {
		return nil, nil, qnerrors.New(qnerrors.KindSecurity, "BadPacket", "pk_len disagrees with container length")
	}
	publicKey = rest
	return signatureAndMessage, publicKey, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readUvarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, fmt.Errorf("crypto: malformed varint")
	}
	return v, n, nil
}

// Ed25519Signer is the reference Signer/Verifier used by tests and the demo
// entrypoint in place of a post-quantum scheme.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func NewEd25519Signer() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv}, nil
}

func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, message), nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	pub, _ := s.priv.Public().(ed25519.PublicKey)
	return pub
}

type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// DeriveKey runs HKDF-SHA256 over passphrase to produce a 256-bit symmetric
// key, the KDF required by spec.md §9. salt may be nil.
func DeriveKey(passphrase, salt, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, passphrase, salt, info)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, qnerrors.Wrap(qnerrors.KindStorage, "InvalidKey", "key derivation failed", err)
	}
	return key, nil
}

// Seal authenticated-encrypts plaintext with a key derived via DeriveKey,
// using ChaCha20-Poly1305 (96-bit nonce, 128-bit tag, per spec.md §9) as the
// AEAD. The returned blob is nonce || ciphertext.
func Seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, qnerrors.Wrap(qnerrors.KindStorage, "EncryptionError", "cipher init failed", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, qnerrors.Wrap(qnerrors.KindStorage, "EncryptionError", "nonce generation failed", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, additionalData)
	return append(nonce, ciphertext...), nil
}

// Open reverses Seal. Wrong key, corrupted blob, or tampered additionalData
// all surface as qnerrors.ErrEncryptionError.
func Open(key, blob, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, qnerrors.Wrap(qnerrors.KindStorage, "EncryptionError", "cipher init failed", err)
	}
	if len(blob) < aead.NonceSize() {
		return nil, qnerrors.New(qnerrors.KindStorage, "EncryptionError", "blob shorter than nonce")
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qnerrors.Wrap(qnerrors.KindStorage, "EncryptionError", "authentication failed", err)
	}
	return plaintext, nil
}
