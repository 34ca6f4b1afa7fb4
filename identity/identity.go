// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package identity provides long-term Ed25519 identity keypairs and their
// birational conversion into X25519 key-agreement keypairs.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/sage-x-project/agentcrypt/apperr"
)

// IdentityKeyPair is a long-lived Ed25519 signing keypair. It is durable
// across the process lifetime of an agent and is the root of trust for
// every session it establishes.
type IdentityKeyPair struct {
	VerifyKey [ed25519.PublicKeySize]byte
	signKey   ed25519.PrivateKey
}

// AgreementKeyPair is the X25519 keypair derived from an IdentityKeyPair for
// use in ECDH. It is never persisted independently of its parent identity.
type AgreementKeyPair struct {
	PublicKey [32]byte
	secretKey [32]byte
}

// SecretKey exposes the raw 32-byte X25519 scalar. Callers must not log or
// serialize it; it exists only to feed Session Establishment's ECDH step.
func (a *AgreementKeyPair) SecretKey() [32]byte { return a.secretKey }

// SignKey returns the raw Ed25519 signing key. Never logged or serialized.
func (kp *IdentityKeyPair) SignKey() ed25519.PrivateKey { return kp.signKey }

// Sign signs message with the identity's long-term Ed25519 key.
func (kp *IdentityKeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.signKey, message)
}

// GenerateIdentityKeyPair draws 32 bytes of cryptographically secure
// randomness and derives an Ed25519 identity keypair from it.
func GenerateIdentityKeyPair() (*IdentityKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCryptoUnavailable, err)
	}
	kp := &IdentityKeyPair{signKey: priv}
	copy(kp.VerifyKey[:], pub)
	return kp, nil
}

// FromSeed reconstructs an IdentityKeyPair from a 32-byte Ed25519 seed, the
// form persisted by callers that need to reload an identity across process
// restarts (e.g. the agentctl CLI). The seed must never be logged.
func FromSeed(seed []byte) (*IdentityKeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: identity seed must be %d bytes, got %d", apperr.ErrMalformedPayload, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	kp := &IdentityKeyPair{signKey: priv}
	copy(kp.VerifyKey[:], priv.Public().(ed25519.PublicKey))
	return kp, nil
}

// Seed returns the 32-byte Ed25519 seed this keypair was derived from, for
// callers that persist identities across process restarts. Never log it.
func (kp *IdentityKeyPair) Seed() []byte {
	return kp.signKey.Seed()
}

// IdentityToAgreement converts a long-term Ed25519 identity keypair into its
// corresponding X25519 agreement keypair using the standard birational map:
// the sign key's SHA-512(seed) is clamped per RFC 8032 §5.1.5 to obtain the
// Montgomery scalar, and the verify key's Edwards point is decompressed and
// projected to its Montgomery u-coordinate. Deterministic: the same identity
// keypair always yields the same agreement keypair.
func IdentityToAgreement(kp *IdentityKeyPair) (*AgreementKeyPair, error) {
	secret, err := scalarFromSignKey(kp.signKey)
	if err != nil {
		return nil, err
	}
	pub, err := AgreementPublicFromIdentityPublic(kp.VerifyKey)
	if err != nil {
		return nil, err
	}
	return &AgreementKeyPair{PublicKey: pub, secretKey: secret}, nil
}

// scalarFromSignKey clamps SHA-512(seed)[:32] into an X25519 secret scalar.
func scalarFromSignKey(signKey ed25519.PrivateKey) ([32]byte, error) {
	var out [32]byte
	if len(signKey) != ed25519.PrivateKeySize {
		return out, fmt.Errorf("%w: bad ed25519 private key length %d", apperr.ErrInvalidKey, len(signKey))
	}
	seed := signKey.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	copy(out[:], h[:32])
	return out, nil
}

// AgreementPublicFromIdentityPublic converts an Ed25519 verify key into its
// X25519 public point. This is the ONLY supported path for recovering a
// peer's agreement public key: unlike a "dummy secret key through the
// keypair constructor" trick, it decompresses the public point directly and
// never touches a private scalar.
func AgreementPublicFromIdentityPublic(verifyKey [ed25519.PublicKeySize]byte) ([32]byte, error) {
	var out [32]byte
	p, err := new(edwards25519.Point).SetBytes(verifyKey[:])
	if err != nil {
		return out, fmt.Errorf("%w: invalid ed25519 point: %v", apperr.ErrInvalidKey, err)
	}
	copy(out[:], p.BytesMontgomery())
	if subtle.ConstantTimeCompare(out[:], make([]byte, 32)) == 1 {
		return out, fmt.Errorf("%w: identity or low-order point", apperr.ErrInvalidKey)
	}
	return out, nil
}
