package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/qnet/crypto"
)

func TestDigestConcatMatchesCommitReveal(t *testing.T) {
	value := []byte("reveal-value")
	nonce := []byte("reveal-nonce")
	commitHash := crypto.DigestConcat(value, nonce)
	again := crypto.DigestConcat(value, nonce)
	require.Equal(t, commitHash, again)

	other := crypto.DigestConcat(value, []byte("different-nonce"))
	require.NotEqual(t, commitHash, other)
}

func TestPacketRoundTrip(t *testing.T) {
	sigAndMsg := []byte("signature-bytes-then-message-bytes")
	pk := make([]byte, crypto.PQPublicKeySize)
	packet := crypto.EncodePacket(sigAndMsg, pk)

	gotSigAndMsg, gotPk, err := crypto.DecodePacket(packet)
	require.NoError(t, err)
	require.Equal(t, sigAndMsg, gotSigAndMsg)
	require.Equal(t, pk, gotPk)
}

func TestDecodePacketRejectsLengthMismatch(t *testing.T) {
	packet := crypto.EncodePacket([]byte("sig"), []byte("pk"))
	// Truncate the trailing public key bytes so pk_len disagrees with the container.
	_, _, err := crypto.DecodePacket(packet[:len(packet)-1])
	require.Error(t, err)
}

func TestHybridTagDetection(t *testing.T) {
	pk := make([]byte, 32)
	pq := crypto.EncodePacket([]byte("sig"), pk)
	hybrid := crypto.EncodeHybridPacket(pq, []byte("elliptic-sig"))
	require.True(t, crypto.IsHybrid(hybrid))
	require.False(t, crypto.IsHybrid(pq))
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := crypto.DeriveKey([]byte("QNET-AB12CD-34EF56-78GH90"), nil, []byte("activation"))
	require.NoError(t, err)

	blob, err := crypto.Seal(key, []byte("wallet:qnet_abc"), []byte("aad"))
	require.NoError(t, err)

	plain, err := crypto.Open(key, blob, []byte("aad"))
	require.NoError(t, err)
	require.Equal(t, "wallet:qnet_abc", string(plain))
}

func TestOpenFailsWithWrongKey(t *testing.T) {
	key1, _ := crypto.DeriveKey([]byte("code-one"), nil, nil)
	key2, _ := crypto.DeriveKey([]byte("code-two"), nil, nil)

	blob, err := crypto.Seal(key1, []byte("secret"), nil)
	require.NoError(t, err)

	_, err = crypto.Open(key2, blob, nil)
	require.Error(t, err)
}

func TestEd25519SignVerify(t *testing.T) {
	signer, err := crypto.NewEd25519Signer()
	require.NoError(t, err)

	msg := []byte("qnet-message")
	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	var v crypto.Ed25519Verifier
	require.True(t, v.Verify(msg, sig, signer.PublicKey()))
	require.False(t, v.Verify([]byte("tampered"), sig, signer.PublicKey()))
}
