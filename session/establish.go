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

package session

import (
	"crypto/ed25519"
	"time"

	"github.com/sage-x-project/agentcrypt/identity"
)

// Establish computes the deterministic session id for (local, remoteDID,
// remoteVerifyKey), returns an existing non-expired session from store if
// one is already resident, or else derives a fresh shared secret via ECDH,
// constructs a new Session, inserts it into store, and returns it.
//
// Establish is idempotent from the caller's point of view: calling it twice
// for the same pair of identities before the session expires returns the
// same Session both times (property P1 plus store reuse).
func Establish(store *Store, local *identity.IdentityKeyPair, remoteDID string, remoteVerifyKey [ed25519.PublicKeySize]byte) (*Session, error) {
	id := ComputeID(local.VerifyKey, remoteVerifyKey)

	if sess, ok := store.Get(id); ok {
		return sess, nil
	}

	localAgreement, err := identity.IdentityToAgreement(local)
	if err != nil {
		return nil, err
	}
	remoteAgreementPublic, err := identity.AgreementPublicFromIdentityPublic(remoteVerifyKey)
	if err != nil {
		return nil, err
	}
	shared, err := deriveSharedSecret(localAgreement, remoteAgreementPublic)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		id:              id,
		remoteDID:       remoteDID,
		remoteVerifyKey: remoteVerifyKey,
		local:           local,
		sharedSecret:    shared,
		createdAt:       now,
		lastActivityAt:  now,
		nonceCounter:    0,
	}

	store.Put(sess)
	return sess, nil
}
