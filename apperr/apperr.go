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

// Package apperr defines the error taxonomy shared by every collaborator of
// the end-to-end encryption core. Every cryptographic failure surfaces
// immediately and untransformed: this package exists so callers can compare
// against these sentinels with errors.Is instead of parsing message strings.
package apperr

import "errors"

var (
	// ErrUnsupportedDID is returned when a DID uses a method or encoding this
	// module does not implement. There is no fallback resolution.
	ErrUnsupportedDID = errors.New("apperr: unsupported did")

	// ErrInvalidKey is returned for malformed, zero, or low-order keys.
	ErrInvalidKey = errors.New("apperr: invalid key")

	// ErrCryptoUnavailable is returned when the system CSPRNG cannot be read.
	ErrCryptoUnavailable = errors.New("apperr: secure randomness unavailable")

	// ErrSessionNotFound is returned when a caller references a session id
	// that does not exist, or that existed but has idle-expired.
	ErrSessionNotFound = errors.New("apperr: session not found")

	// ErrSessionClosed is returned by any operation on a manager that has
	// been stopped.
	ErrSessionClosed = errors.New("apperr: session manager stopped")

	// ErrAuthenticationFailure is returned when AEAD or signature
	// verification rejects a message. Never downgraded to a softer error.
	ErrAuthenticationFailure = errors.New("apperr: authentication failed")

	// ErrMalformedPayload is returned when a nonce/ciphertext is the wrong
	// length, or an envelope fails to canonicalize.
	ErrMalformedPayload = errors.New("apperr: malformed payload")

	// ErrBadSignature is returned when an envelope's Ed25519 signature does
	// not verify against its attached sender key.
	ErrBadSignature = errors.New("apperr: bad signature")

	// ErrIdentityMismatch is returned when an envelope's sender.id does not
	// resolve to the verify key attached to the envelope.
	ErrIdentityMismatch = errors.New("apperr: identity mismatch")

	// ErrReplayDetected is returned by the optional replay-hardening path
	// when a sequence number is not strictly greater than the highest one
	// previously accepted for a session.
	ErrReplayDetected = errors.New("apperr: replay detected")
)
