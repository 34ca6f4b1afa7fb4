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

package envelope

import (
	"testing"

	"github.com/sage-x-project/agentcrypt/did"
	"github.com/sage-x-project/agentcrypt/identity"
)

// FuzzSignVerify_RejectsTextMutation exercises P7: any alteration of a
// signed envelope's payload text must cause Verify to fail with
// ErrBadSignature, never succeed on a mutated envelope.
func FuzzSignVerify_RejectsTextMutation(f *testing.F) {
	f.Add("hello")
	f.Add("")
	f.Add("x")

	kp, err := identity.GenerateIdentityKeyPair()
	if err != nil {
		f.Fatalf("generate identity: %v", err)
	}
	senderDID := did.EncodeKey(kp.VerifyKey)

	f.Fuzz(func(t *testing.T, original, mutated string) {
		env, err := Build(TypeText, Party{"id": senderDID}, Party{"id": "did:key:zRecipient"}, map[string]interface{}{"text": original})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		signed, err := Sign(env, kp.SignKey(), kp.VerifyKey)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if err := Verify(signed); err != nil {
			t.Fatalf("verify of unmutated envelope failed: %v", err)
		}

		if mutated == original {
			return
		}
		signed.Envelope.Payload["text"] = mutated
		if err := Verify(signed); err == nil {
			t.Fatalf("verify succeeded after mutating payload text from %q to %q", original, mutated)
		}
	})
}

// FuzzCanonicalize_Deterministic exercises that canonicalizing the same
// logical document twice (as independently unmarshaled generic values)
// always yields byte-identical output, regardless of map iteration order.
func FuzzCanonicalize_Deterministic(f *testing.F) {
	f.Add("alpha", "beta", float64(1), float64(2))

	f.Fuzz(func(t *testing.T, keyA, keyB string, valA, valB float64) {
		if keyA == keyB {
			return
		}
		doc := map[string]interface{}{keyA: valA, keyB: valB}

		first, err := canonicalize(doc)
		if err != nil {
			t.Fatalf("canonicalize: %v", err)
		}
		second, err := canonicalize(doc)
		if err != nil {
			t.Fatalf("canonicalize (second pass): %v", err)
		}
		if string(first) != string(second) {
			t.Fatalf("canonicalize not deterministic: %q vs %q", first, second)
		}
	})
}
