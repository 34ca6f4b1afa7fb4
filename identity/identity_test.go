package identity

import (
	"crypto/ecdh"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateIdentityKeyPair(t *testing.T) {
	kp, err := GenerateIdentityKeyPair()
	require.NoError(t, err)
	require.NotNil(t, kp)
	require.Len(t, kp.VerifyKey, 32)
}

func TestFromSeed_ReconstructsSameIdentity(t *testing.T) {
	kp, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	reconstructed, err := FromSeed(kp.Seed())
	require.NoError(t, err)
	require.Equal(t, kp.VerifyKey, reconstructed.VerifyKey)

	msg := []byte("identical keys sign identically")
	require.Equal(t, kp.Sign(msg), reconstructed.Sign(msg))
}

func TestFromSeed_RejectsWrongLength(t *testing.T) {
	_, err := FromSeed(make([]byte, 16))
	require.Error(t, err)
}

func TestIdentityToAgreement_Deterministic(t *testing.T) {
	kp, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	a1, err := IdentityToAgreement(kp)
	require.NoError(t, err)
	a2, err := IdentityToAgreement(kp)
	require.NoError(t, err)

	require.Equal(t, a1.PublicKey, a2.PublicKey)
	require.Equal(t, a1.SecretKey(), a2.SecretKey())
}

func TestIdentityToAgreement_MatchesPublicOnlyConversion(t *testing.T) {
	kp, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	agreement, err := IdentityToAgreement(kp)
	require.NoError(t, err)

	pubOnly, err := AgreementPublicFromIdentityPublic(kp.VerifyKey)
	require.NoError(t, err)

	require.Equal(t, agreement.PublicKey, pubOnly)
}

// TestSharedSecretSymmetry is property P2: the shared secret derived by A
// using B's public key equals the one B derives using A's public key.
func TestSharedSecretSymmetry(t *testing.T) {
	a, err := GenerateIdentityKeyPair()
	require.NoError(t, err)
	b, err := GenerateIdentityKeyPair()
	require.NoError(t, err)

	aAgree, err := IdentityToAgreement(a)
	require.NoError(t, err)
	bAgree, err := IdentityToAgreement(b)
	require.NoError(t, err)

	curve := ecdh.X25519()

	aPriv, err := curve.NewPrivateKey(sliceFromArray(aAgree.SecretKey()))
	require.NoError(t, err)
	bPriv, err := curve.NewPrivateKey(sliceFromArray(bAgree.SecretKey()))
	require.NoError(t, err)

	bPub, err := curve.NewPublicKey(sliceFromArray(bAgree.PublicKey))
	require.NoError(t, err)
	aPub, err := curve.NewPublicKey(sliceFromArray(aAgree.PublicKey))
	require.NoError(t, err)

	sharedFromA, err := aPriv.ECDH(bPub)
	require.NoError(t, err)
	sharedFromB, err := bPriv.ECDH(aPub)
	require.NoError(t, err)

	require.Equal(t, sharedFromA, sharedFromB)
}

func TestAgreementPublicFromIdentityPublic_RejectsGarbage(t *testing.T) {
	var garbage [32]byte
	for i := range garbage {
		garbage[i] = 0xFF
	}
	_, err := AgreementPublicFromIdentityPublic(garbage)
	require.Error(t, err)
}

func sliceFromArray(b [32]byte) []byte {
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}
