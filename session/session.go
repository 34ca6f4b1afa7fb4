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

// Package session establishes and stores authenticated sessions between
// agents identified by DIDs: a deterministic session id, an X25519-derived
// shared secret, and a strictly-increasing per-session nonce counter.
package session

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/agentcrypt/apperr"
	"github.com/sage-x-project/agentcrypt/identity"
)

// Session binds two identity keys to a derived symmetric secret and a nonce
// counter. It is the unit over which channel.Encrypt/Decrypt operate.
type Session struct {
	mu sync.Mutex

	id              string
	remoteDID       string
	remoteVerifyKey [ed25519.PublicKeySize]byte
	local           *identity.IdentityKeyPair
	sharedSecret    [32]byte

	createdAt      time.Time
	lastActivityAt time.Time
	nonceCounter   uint32
}

// ID returns the session's deterministic identifier.
func (s *Session) ID() string { return s.id }

// RemoteDID returns the DID of the session's remote party.
func (s *Session) RemoteDID() string { return s.remoteDID }

// CreatedAt returns when the session was established.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastActivityAt returns the last time the session was touched.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// SharedSecret returns the session's 32-byte symmetric secret. Callers must
// never log, serialize, or otherwise let this value leave the process
// (invariant I3).
func (s *Session) SharedSecret() [32]byte { return s.sharedSecret }

// Local returns the local identity keypair this session was established
// with. Owned for the session's lifetime.
func (s *Session) Local() *identity.IdentityKeyPair { return s.local }

// String implements fmt.Stringer without leaking key material.
func (s *Session) String() string {
	return fmt.Sprintf("Session{id=%s remote=%s}", s.id, s.RemoteDID())
}

// NextNonceCounter atomically increments and returns the session's nonce
// counter (invariant I2: strictly increasing, never reset or decremented for
// the session's lifetime) and touches last-activity. Called by channel.Encrypt
// once per message sealed under this session.
func (s *Session) NextNonceCounter() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonceCounter++
	s.lastActivityAt = time.Now()
	return s.nonceCounter
}

// Touch updates last-activity without advancing the nonce counter; called by
// channel.Decrypt on every successful open.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = time.Now()
}

// ComputeID derives the deterministic session identifier shared by both
// parties: base64(SHA-512(sorted(a, b))[0:16]). Commutative: ComputeID(A, B)
// == ComputeID(B, A) (property P1).
func ComputeID(a, b [ed25519.PublicKeySize]byte) string {
	lo, hi := a[:], b[:]
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	h := sha512.New()
	h.Write(lo)
	h.Write(hi)
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}

// deriveSharedSecret computes X25519(localSecret, remotePublic) and rejects
// an all-zero (identity/low-order) result.
func deriveSharedSecret(local *identity.AgreementKeyPair, remotePublic [32]byte) ([32]byte, error) {
	var out [32]byte
	localSecret := local.SecretKey()
	curve := x25519Curve()
	priv, err := curve.NewPrivateKey(localSecret[:])
	if err != nil {
		return out, fmt.Errorf("%w: %v", apperr.ErrInvalidKey, err)
	}
	pub, err := curve.NewPublicKey(remotePublic[:])
	if err != nil {
		return out, fmt.Errorf("%w: %v", apperr.ErrInvalidKey, err)
	}
	shared, err := priv.ECDH(pub)
	if err != nil {
		return out, fmt.Errorf("%w: %v", apperr.ErrInvalidKey, err)
	}
	if subtle.ConstantTimeCompare(shared, make([]byte, 32)) == 1 {
		return out, fmt.Errorf("%w: all-zero ECDH result", apperr.ErrInvalidKey)
	}
	copy(out[:], shared)
	return out, nil
}
