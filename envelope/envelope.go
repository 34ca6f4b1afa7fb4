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

// Package envelope builds, signs, and verifies the routable containers that
// carry either clear or encrypted payloads between agents. Every envelope is
// signed over its canonical byte form (see canonical.go), so any third party
// can verify authorship without being able to read an encrypted payload.
package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/sage-x-project/agentcrypt/apperr"
	"github.com/sage-x-project/agentcrypt/channel"
	"github.com/sage-x-project/agentcrypt/did"
	"github.com/sage-x-project/agentcrypt/internal/metrics"
	"github.com/sage-x-project/agentcrypt/session"
)

// Party is an open id-keyed map identifying a sender or recipient. "id" MUST
// be present and hold a did:key identifier; any other key is carried as
// opaque routing metadata.
type Party map[string]interface{}

// ID returns the party's "id" field, or "" if absent/not a string.
func (p Party) ID() string {
	v, _ := p["id"].(string)
	return v
}

// Envelope is the plaintext, signed, routable container. Payload is an open
// key/value map; for encrypted content it carries encrypted, ciphertext,
// nonce, sequence, and timestamp fields (see EncryptThenSign).
type Envelope struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Sender    Party                  `json:"sender"`
	Recipient Party                  `json:"recipient"`
	Payload   map[string]interface{} `json:"payload"`
}

// SignedEnvelope wraps an Envelope with a detached Ed25519 signature over
// its canonical bytes, plus the sender's verify key for verifier
// convenience.
type SignedEnvelope struct {
	Envelope  Envelope `json:"envelope"`
	Signature []byte   `json:"signature"`
	SenderKey []byte   `json:"senderKey"`
}

// Message types recognized by this system.
const (
	TypeRequest = "REQUEST"
	TypeOffer   = "OFFER"
	TypeAccept  = "ACCEPT"
	TypeResult  = "RESULT"
	TypeText    = "TEXT"
)

// NewMessageID returns an id of the form "<base36(unixMilli)>-<8 base64
// chars of randomness>".
func NewMessageID() (string, error) {
	ms := big.NewInt(time.Now().UnixMilli())
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrCryptoUnavailable, err)
	}
	suffix := base64.RawURLEncoding.EncodeToString(buf)[:8]
	return fmt.Sprintf("%s-%s", ms.Text(36), suffix), nil
}

// Build assembles an Envelope: a fresh message id, the given type, sender and
// recipient parties, and payload.
func Build(msgType string, sender, recipient Party, payload map[string]interface{}) (Envelope, error) {
	id, err := NewMessageID()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        id,
		Type:      msgType,
		Sender:    sender,
		Recipient: recipient,
		Payload:   payload,
	}, nil
}

// Sign produces a SignedEnvelope: an Ed25519 signature over env's canonical
// bytes, plus the signer's verify key.
func Sign(env Envelope, signKey ed25519.PrivateKey, verifyKey [ed25519.PublicKeySize]byte) (SignedEnvelope, error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("sign", "ed25519").Observe(time.Since(start).Seconds())
	}()

	canonicalBytes, err := canonicalBytesOf(env)
	if err != nil {
		return SignedEnvelope{}, fmt.Errorf("%w: %v", apperr.ErrMalformedPayload, err)
	}
	sig := ed25519.Sign(signKey, canonicalBytes)
	return SignedEnvelope{
		Envelope:  env,
		Signature: sig,
		SenderKey: verifyKey[:],
	}, nil
}

// Verify recomputes the canonical bytes of signed.Envelope, checks the
// signature against signed.SenderKey, and confirms that signed.Envelope
// .Sender.ID() resolves (via did.Resolve) to exactly that verify key.
func Verify(signed SignedEnvelope) error {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("verify", "ed25519").Observe(time.Since(start).Seconds())
	}()

	canonicalBytes, err := canonicalBytesOf(signed.Envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrMalformedPayload, err)
	}

	if len(signed.SenderKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: sender key has length %d", apperr.ErrMalformedPayload, len(signed.SenderKey))
	}
	if !ed25519.Verify(signed.SenderKey, canonicalBytes, signed.Signature) {
		return apperr.ErrBadSignature
	}

	senderDID := signed.Envelope.Sender.ID()
	if senderDID == "" {
		return fmt.Errorf("%w: envelope sender has no id", apperr.ErrMalformedPayload)
	}
	resolved, err := did.Resolve(senderDID)
	if err != nil {
		return err
	}
	if string(resolved[:]) != string(signed.SenderKey) {
		return apperr.ErrIdentityMismatch
	}
	return nil
}

// EncryptThenSign encrypts plaintext under sess via cipher, assembles an
// envelope whose payload carries the ciphertext fields plus encrypted=true,
// and signs it with sess's own local identity key.
func EncryptThenSign(cipher *channel.Cipher, sess *session.Session, msgType string, sender, recipient Party, plaintext []byte) (SignedEnvelope, error) {
	encrypted, err := cipher.Encrypt(sess, plaintext)
	if err != nil {
		return SignedEnvelope{}, err
	}

	payload := map[string]interface{}{
		"encrypted":  true,
		"ciphertext": base64.StdEncoding.EncodeToString(encrypted.Ciphertext),
		"nonce":      base64.StdEncoding.EncodeToString(encrypted.Nonce[:]),
		"sequence":   encrypted.Sequence,
		"timestamp":  encrypted.Timestamp.UnixMilli(),
	}

	env, err := Build(msgType, sender, recipient, payload)
	if err != nil {
		return SignedEnvelope{}, err
	}
	local := sess.Local()
	return Sign(env, local.SignKey(), local.VerifyKey)
}

// VerifyThenDecrypt verifies signed, then parses its payload's encrypted
// fields and decrypts them under sess via cipher. Decryption is never
// attempted on an envelope that failed verification.
func VerifyThenDecrypt(cipher *channel.Cipher, sess *session.Session, signed SignedEnvelope) ([]byte, error) {
	if err := Verify(signed); err != nil {
		return nil, err
	}

	payload := signed.Envelope.Payload
	ciphertextB64, _ := payload["ciphertext"].(string)
	nonceB64, _ := payload["nonce"].(string)

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", apperr.ErrMalformedPayload)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonceBytes) != channel.NonceSize {
		return nil, fmt.Errorf("%w: bad nonce", apperr.ErrMalformedPayload)
	}
	sequence, err := sequenceOf(payload["sequence"])
	if err != nil {
		return nil, err
	}

	encrypted := &channel.EncryptedPayload{
		Ciphertext: ciphertext,
		Sequence:   sequence,
	}
	copy(encrypted.Nonce[:], nonceBytes)

	return cipher.Decrypt(sess, encrypted)
}

// sequenceOf recovers the uint32 sequence number EncryptThenSign placed in
// the payload. It arrives as a uint32 when passed in-process (EncryptTo ->
// DecryptFrom in the same binary) but as a float64 or json.Number once the
// envelope has round-tripped through encoding/json (the websocket path).
func sequenceOf(v interface{}) (uint32, error) {
	switch n := v.(type) {
	case uint32:
		return n, nil
	case float64:
		return uint32(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: bad sequence %q", apperr.ErrMalformedPayload, n)
		}
		return uint32(i), nil
	default:
		return 0, fmt.Errorf("%w: sequence has type %T", apperr.ErrMalformedPayload, v)
	}
}

// canonicalBytesOf round-trips env through JSON into the generic document
// shape canonicalize expects, then canonicalizes it.
func canonicalBytesOf(env Envelope) ([]byte, error) {
	generic, err := toCanonicalMap(env)
	if err != nil {
		return nil, err
	}
	return canonicalize(generic)
}
