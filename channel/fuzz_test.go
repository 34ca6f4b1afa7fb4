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

package channel

import (
	"testing"

	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/identity"
	"github.com/sage-x-project/agentcrypt/session"
)

// FuzzEncryptDecrypt_Roundtrip exercises P3: decrypt(encrypt(m)) == m for
// arbitrary byte strings, including empty and very large inputs.
func FuzzEncryptDecrypt_Roundtrip(f *testing.F) {
	f.Add([]byte("hello agent"))
	f.Add([]byte(""))
	f.Add([]byte{0})
	f.Add(make([]byte, 65536))

	sessA, sessB := newFuzzPair(f)
	c := New(Config{})

	f.Fuzz(func(t *testing.T, plaintext []byte) {
		payload, err := c.Encrypt(sessA, plaintext)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		got, err := c.Decrypt(sessB, payload)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if string(got) != string(plaintext) {
			t.Fatalf("roundtrip mismatch: got %q, want %q", got, plaintext)
		}
	})
}

// FuzzDecrypt_RejectsBitFlips exercises P6: flipping any byte of the
// ciphertext must fail authentication, never silently succeed or panic.
func FuzzDecrypt_RejectsBitFlips(f *testing.F) {
	f.Add(0, byte(0x01))
	f.Add(3, byte(0xFF))

	sessA, sessB := newFuzzPair(f)
	c := New(Config{})
	payload, err := c.Encrypt(sessA, []byte("tamper me"))
	if err != nil {
		f.Fatalf("encrypt: %v", err)
	}

	f.Fuzz(func(t *testing.T, byteIdx int, flip byte) {
		if flip == 0 || len(payload.Ciphertext) == 0 {
			return
		}
		idx := byteIdx % len(payload.Ciphertext)
		if idx < 0 {
			idx += len(payload.Ciphertext)
		}

		tampered := *payload
		tampered.Ciphertext = append([]byte(nil), payload.Ciphertext...)
		tampered.Ciphertext[idx] ^= flip

		if _, err := c.Decrypt(sessB, &tampered); err == nil {
			t.Fatalf("decrypt of tampered ciphertext unexpectedly succeeded")
		}
	})
}

func newFuzzPair(tb testing.TB) (*session.Session, *session.Session) {
	tb.Helper()
	a, err := identity.GenerateIdentityKeyPair()
	if err != nil {
		tb.Fatalf("generate a: %v", err)
	}
	b, err := identity.GenerateIdentityKeyPair()
	if err != nil {
		tb.Fatalf("generate b: %v", err)
	}

	bus := eventbus.New()
	storeA := session.NewStore(session.Config{}, bus)
	storeB := session.NewStore(session.Config{}, bus)
	tb.Cleanup(storeA.Close)
	tb.Cleanup(storeB.Close)

	sessA, err := session.Establish(storeA, a, "did:key:zFuzzB", b.VerifyKey)
	if err != nil {
		tb.Fatalf("establish a: %v", err)
	}
	sessB, err := session.Establish(storeB, b, "did:key:zFuzzA", a.VerifyKey)
	if err != nil {
		tb.Fatalf("establish b: %v", err)
	}
	return sessA, sessB
}
