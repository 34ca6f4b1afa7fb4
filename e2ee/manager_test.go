package e2ee

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/agentcrypt/apperr"
	"github.com/sage-x-project/agentcrypt/did"
	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/identity"
	"github.com/sage-x-project/agentcrypt/session"
)

func newManager(t *testing.T, cfg session.Config, opts ...Option) (*Manager, *identity.IdentityKeyPair) {
	t.Helper()
	kp, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	m := NewManager(kp, cfg, opts...)
	t.Cleanup(m.Stop)
	return m, kp
}

func TestRoundtrip_HelloWorld(t *testing.T) {
	ctx := context.Background()
	mgrA, _ := newManager(t, session.Config{})
	mgrB, kpB := newManager(t, session.Config{})

	signed, err := mgrA.EncryptTo(ctx, did.EncodeKey(kpB.VerifyKey), []byte("hello"))
	require.NoError(t, err)

	plaintext, err := mgrB.DecryptFrom(ctx, signed)
	require.NoError(t, err)
	require.Equal(t, "hello", string(plaintext))
}

func TestWrongRecipient_AuthenticationFailure(t *testing.T) {
	ctx := context.Background()
	mgrA, _ := newManager(t, session.Config{})
	mgrB, kpB := newManager(t, session.Config{})
	mgrC, _ := newManager(t, session.Config{})

	signed, err := mgrA.EncryptTo(ctx, did.EncodeKey(kpB.VerifyKey), []byte("hello"))
	require.NoError(t, err)

	_, err = mgrC.DecryptFrom(ctx, signed)
	require.ErrorIs(t, err, apperr.ErrAuthenticationFailure)
}

func TestReplay_WithHardeningRejectsRedelivery(t *testing.T) {
	ctx := context.Background()
	mgrA, _ := newManager(t, session.Config{})
	mgrB, kpB := newManager(t, session.Config{}, WithReplayProtection())

	remoteB := did.EncodeKey(kpB.VerifyKey)
	m1, err := mgrA.EncryptTo(ctx, remoteB, []byte("m1"))
	require.NoError(t, err)
	m2, err := mgrA.EncryptTo(ctx, remoteB, []byte("m2"))
	require.NoError(t, err)

	_, err = mgrB.DecryptFrom(ctx, m1)
	require.NoError(t, err)
	_, err = mgrB.DecryptFrom(ctx, m2)
	require.NoError(t, err)

	_, err = mgrB.DecryptFrom(ctx, m1)
	require.ErrorIs(t, err, apperr.ErrReplayDetected)
}

func TestIdleExpiry_GetReturnsAbsentAndEmitsEvent(t *testing.T) {
	ctx := context.Background()
	mgrA, _ := newManager(t, session.Config{SessionTimeout: time.Millisecond})
	mgrB, kpB := newManager(t, session.Config{})

	var expired eventbus.Event
	mgrA.Subscribe(eventbus.SessionExpired, func(e eventbus.Event) { expired = e })

	signed, err := mgrA.EncryptTo(ctx, did.EncodeKey(kpB.VerifyKey), []byte("hi"))
	require.NoError(t, err)
	sessionID := signed.Envelope.ID // placeholder read to keep signed referenced

	_ = sessionID
	time.Sleep(5 * time.Millisecond)

	// A second EncryptTo re-establishes (since the prior session idled out),
	// which internally calls store.Get and triggers the idle-expiry path.
	_, err = mgrA.EncryptTo(ctx, did.EncodeKey(kpB.VerifyKey), []byte("hi again"))
	require.NoError(t, err)

	require.Equal(t, "idle timeout", expired.Reason)
}

func TestCapacityEviction_KeepsMostRecentlyActive(t *testing.T) {
	ctx := context.Background()
	mgrA, _ := newManager(t, session.Config{MaxSessions: 2})

	var evicted []string
	mgrA.Subscribe(eventbus.SessionCreated, func(e eventbus.Event) {})
	mgrA.Subscribe(eventbus.SessionExpired, func(e eventbus.Event) {
		if e.Reason == "eviction" {
			evicted = append(evicted, e.SessionID)
		}
	})

	kp1, _ := identity.GenerateIdentityKeyPair()
	kp2, _ := identity.GenerateIdentityKeyPair()
	kp3, _ := identity.GenerateIdentityKeyPair()

	_, err := mgrA.EncryptTo(ctx, did.EncodeKey(kp1.VerifyKey), []byte("x"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = mgrA.EncryptTo(ctx, did.EncodeKey(kp2.VerifyKey), []byte("x"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = mgrA.EncryptTo(ctx, did.EncodeKey(kp3.VerifyKey), []byte("x"))
	require.NoError(t, err)

	require.Equal(t, 2, mgrA.SessionCount())
	require.Len(t, evicted, 1)
	_, err = mgrA.Session(did.EncodeKey(kp1.VerifyKey))
	require.ErrorIs(t, err, apperr.ErrSessionNotFound)
	_, err = mgrA.Session(did.EncodeKey(kp2.VerifyKey))
	require.NoError(t, err)
	_, err = mgrA.Session(did.EncodeKey(kp3.VerifyKey))
	require.NoError(t, err)
}

func TestTamperedEnvelope_VerifyFailsBeforeDecrypt(t *testing.T) {
	ctx := context.Background()
	mgrA, _ := newManager(t, session.Config{})
	mgrB, kpB := newManager(t, session.Config{})

	signed, err := mgrA.EncryptTo(ctx, did.EncodeKey(kpB.VerifyKey), []byte("hello"))
	require.NoError(t, err)

	ciphertext, ok := signed.Envelope.Payload["ciphertext"].(string)
	require.True(t, ok)
	require.NotEmpty(t, ciphertext)
	signed.Envelope.Payload["ciphertext"] = ciphertext[:len(ciphertext)-1] + "x"

	_, err = mgrB.DecryptFrom(ctx, signed)
	require.ErrorIs(t, err, apperr.ErrBadSignature)
}

func TestStop_RejectsSubsequentOperations(t *testing.T) {
	ctx := context.Background()
	mgrA, _ := newManager(t, session.Config{})
	_, kpB := newManager(t, session.Config{})

	mgrA.Stop()
	_, err := mgrA.EncryptTo(ctx, did.EncodeKey(kpB.VerifyKey), []byte("hello"))
	require.ErrorIs(t, err, apperr.ErrSessionClosed)
}
