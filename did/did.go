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

// Package did resolves decentralized identifiers to Ed25519 verify keys.
// Only the `key` method is implemented, restricted to the Ed25519 multicodec.
// Any other method or encoding is rejected outright; there is no fallback.
package did

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/sage-x-project/agentcrypt/apperr"
)

const (
	methodPrefix = "did:key:z"

	// multicodecByte0 and multicodecByte1 are the varint-encoded multicodec
	// prefix (0xED 0x01) identifying an Ed25519 public key, per the did:key
	// specification.
	multicodecByte0 = 0xED
	multicodecByte1 = 0x01
)

// Resolve resolves a did:key DID to the 32-byte Ed25519 verify key it
// encodes. Any DID that is not did:key, or whose multicodec is not Ed25519,
// returns apperr.ErrUnsupportedDID.
func Resolve(agentDID string) ([ed25519.PublicKeySize]byte, error) {
	var out [ed25519.PublicKeySize]byte

	if !strings.HasPrefix(agentDID, methodPrefix) {
		return out, fmt.Errorf("%w: %q is not a did:key (base58btc) identifier", apperr.ErrUnsupportedDID, agentDID)
	}

	encoded := strings.TrimPrefix(agentDID, methodPrefix)
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return out, fmt.Errorf("%w: bad base58btc payload: %v", apperr.ErrUnsupportedDID, err)
	}

	if len(decoded) != 2+ed25519.PublicKeySize {
		return out, fmt.Errorf("%w: unexpected payload length %d", apperr.ErrUnsupportedDID, len(decoded))
	}
	if decoded[0] != multicodecByte0 || decoded[1] != multicodecByte1 {
		return out, fmt.Errorf("%w: multicodec %#x%#x is not Ed25519", apperr.ErrUnsupportedDID, decoded[0], decoded[1])
	}

	copy(out[:], decoded[2:])
	return out, nil
}

// EncodeKey renders an Ed25519 verify key as a did:key identifier. It is the
// inverse of Resolve, used by the CLI and test fixtures.
func EncodeKey(verifyKey [ed25519.PublicKeySize]byte) string {
	payload := make([]byte, 0, 2+ed25519.PublicKeySize)
	payload = append(payload, multicodecByte0, multicodecByte1)
	payload = append(payload, verifyKey[:]...)
	return methodPrefix + base58.Encode(payload)
}
