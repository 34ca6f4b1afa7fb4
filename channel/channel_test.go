package channel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/agentcrypt/apperr"
	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/identity"
	"github.com/sage-x-project/agentcrypt/session"
)

func newEstablishedPair(t *testing.T) (*session.Session, *session.Session) {
	t.Helper()
	a, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	b, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)

	bus := eventbus.New()
	storeA := session.NewStore(session.Config{}, bus)
	storeB := session.NewStore(session.Config{}, bus)
	t.Cleanup(storeA.Close)
	t.Cleanup(storeB.Close)

	sessA, err := session.Establish(storeA, a, "did:key:zB", b.VerifyKey)
	require.NoError(t, err)
	sessB, err := session.Establish(storeB, b, "did:key:zA", a.VerifyKey)
	require.NoError(t, err)
	return sessA, sessB
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	sessA, sessB := newEstablishedPair(t)
	c := New(Config{})

	payload, err := c.Encrypt(sessA, []byte("hello agent"))
	require.NoError(t, err)

	plaintext, err := c.Decrypt(sessB, payload)
	require.NoError(t, err)
	require.Equal(t, "hello agent", string(plaintext))
}

func TestEncrypt_NoncesAreUnique(t *testing.T) {
	sessA, _ := newEstablishedPair(t)
	c := New(Config{})

	seen := make(map[[nonceLen]byte]bool)
	for i := 0; i < 50; i++ {
		payload, err := c.Encrypt(sessA, []byte("msg"))
		require.NoError(t, err)
		require.False(t, seen[payload.Nonce])
		seen[payload.Nonce] = true
	}
}

func TestEncrypt_SequenceIsMonotonic(t *testing.T) {
	sessA, _ := newEstablishedPair(t)
	c := New(Config{})

	var prev uint32
	for i := 0; i < 10; i++ {
		payload, err := c.Encrypt(sessA, []byte("msg"))
		require.NoError(t, err)
		require.Greater(t, payload.Sequence, prev)
		prev = payload.Sequence
	}
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	sessA, sessB := newEstablishedPair(t)
	c := New(Config{})

	payload, err := c.Encrypt(sessA, []byte("hello agent"))
	require.NoError(t, err)
	payload.Ciphertext[0] ^= 0xFF

	_, err = c.Decrypt(sessB, payload)
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailure)
}

func TestDecrypt_ReplayProtectionRejectsReplayedSequence(t *testing.T) {
	sessA, sessB := newEstablishedPair(t)
	c := New(Config{ReplayProtection: true})

	payload, err := c.Encrypt(sessA, []byte("first"))
	require.NoError(t, err)

	_, err = c.Decrypt(sessB, payload)
	require.NoError(t, err)

	_, err = c.Decrypt(sessB, payload)
	require.ErrorIs(t, err, apperr.ErrReplayDetected)
}
