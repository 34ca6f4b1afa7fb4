package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/agentcrypt/apperr"
	"github.com/sage-x-project/agentcrypt/channel"
	"github.com/sage-x-project/agentcrypt/did"
	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/identity"
	"github.com/sage-x-project/agentcrypt/session"
)

func TestCanonicalize_SortsKeysAndOmitsNulls(t *testing.T) {
	doc := map[string]interface{}{
		"b": 1.0,
		"a": "x",
		"c": nil,
	}
	out, err := canonicalize(doc)
	require.NoError(t, err)
	require.Equal(t, `{"a":"x","b":1}`, string(out))
}

func TestCanonicalize_NestedObjectsSortedAtEveryLevel(t *testing.T) {
	doc := map[string]interface{}{
		"outer": map[string]interface{}{
			"z": 1.0,
			"a": 2.0,
		},
	}
	out, err := canonicalize(doc)
	require.NoError(t, err)
	require.Equal(t, `{"outer":{"a":2,"z":1}}`, string(out))
}

func TestSignVerify_Roundtrip(t *testing.T) {
	kp, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	senderDID := did.EncodeKey(kp.VerifyKey)

	env, err := Build(TypeText, Party{"id": senderDID}, Party{"id": "did:key:zRecipient"}, map[string]interface{}{"text": "hi"})
	require.NoError(t, err)

	signed, err := Sign(env, kp.SignKey(), kp.VerifyKey)
	require.NoError(t, err)

	require.NoError(t, Verify(signed))
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	kp, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	senderDID := did.EncodeKey(kp.VerifyKey)

	env, err := Build(TypeText, Party{"id": senderDID}, Party{"id": "did:key:zRecipient"}, map[string]interface{}{"ciphertext": "abcd"})
	require.NoError(t, err)
	signed, err := Sign(env, kp.SignKey(), kp.VerifyKey)
	require.NoError(t, err)

	signed.Envelope.Payload["ciphertext"] = "zzzz"

	err = Verify(signed)
	require.ErrorIs(t, err, apperr.ErrBadSignature)
}

func TestVerify_RejectsIdentityMismatch(t *testing.T) {
	kp, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	other, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)

	// Sender claims to be "other" but signs with kp.
	senderDID := did.EncodeKey(other.VerifyKey)
	env, err := Build(TypeText, Party{"id": senderDID}, Party{"id": "did:key:zRecipient"}, map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	signed, err := Sign(env, kp.SignKey(), kp.VerifyKey)
	require.NoError(t, err)

	err = Verify(signed)
	require.ErrorIs(t, err, apperr.ErrIdentityMismatch)
}

func TestEncryptThenSign_VerifyThenDecrypt_Roundtrip(t *testing.T) {
	a, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	b, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)

	bus := eventbus.New()
	storeA := session.NewStore(session.Config{}, bus)
	storeB := session.NewStore(session.Config{}, bus)
	t.Cleanup(storeA.Close)
	t.Cleanup(storeB.Close)

	sessA, err := session.Establish(storeA, a, did.EncodeKey(b.VerifyKey), b.VerifyKey)
	require.NoError(t, err)
	sessB, err := session.Establish(storeB, b, did.EncodeKey(a.VerifyKey), a.VerifyKey)
	require.NoError(t, err)

	cipher := channel.New(channel.Config{})
	senderParty := Party{"id": did.EncodeKey(a.VerifyKey)}
	recipientParty := Party{"id": did.EncodeKey(b.VerifyKey)}

	signed, err := EncryptThenSign(cipher, sessA, TypeText, senderParty, recipientParty, []byte("hello"))
	require.NoError(t, err)

	plaintext, err := VerifyThenDecrypt(cipher, sessB, signed)
	require.NoError(t, err)
	require.Equal(t, "hello", string(plaintext))
}

func TestVerifyThenDecrypt_TamperedCiphertextFailsAtVerify(t *testing.T) {
	a, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)
	b, err := identity.GenerateIdentityKeyPair()
	require.NoError(t, err)

	bus := eventbus.New()
	storeA := session.NewStore(session.Config{}, bus)
	storeB := session.NewStore(session.Config{}, bus)
	t.Cleanup(storeA.Close)
	t.Cleanup(storeB.Close)

	sessA, err := session.Establish(storeA, a, did.EncodeKey(b.VerifyKey), b.VerifyKey)
	require.NoError(t, err)
	sessB, err := session.Establish(storeB, b, did.EncodeKey(a.VerifyKey), a.VerifyKey)
	require.NoError(t, err)

	cipher := channel.New(channel.Config{})
	signed, err := EncryptThenSign(cipher, sessA, TypeText,
		Party{"id": did.EncodeKey(a.VerifyKey)}, Party{"id": did.EncodeKey(b.VerifyKey)}, []byte("hello"))
	require.NoError(t, err)

	signed.Envelope.Payload["ciphertext"] = "////"

	_, err = VerifyThenDecrypt(cipher, sessB, signed)
	require.ErrorIs(t, err, apperr.ErrBadSignature)
}
