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

// Package channel encrypts and decrypts message bodies for an established
// session using XSalsa20-Poly1305 (nacl/secretbox). The 24-byte nonce is a
// 4-byte little-endian session nonce counter followed by 20 bytes of fresh
// randomness, so a counter reused across process restarts still can't
// produce a colliding nonce outright as long as the random suffix differs.
package channel

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/sage-x-project/agentcrypt/apperr"
	"github.com/sage-x-project/agentcrypt/internal/metrics"
	"github.com/sage-x-project/agentcrypt/session"
)

const (
	nonceCounterLen = 4
	nonceRandomLen  = 20
	nonceLen        = nonceCounterLen + nonceRandomLen

	// NonceSize is the full wire size of a channel nonce in bytes.
	NonceSize = nonceLen
)

// EncryptedPayload is the wire representation of a single encrypted message.
type EncryptedPayload struct {
	Ciphertext []byte         `json:"ciphertext"`
	Nonce      [nonceLen]byte `json:"nonce"`
	Sequence   uint32         `json:"sequence"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Config tunes replay hardening. ReplayProtection, when enabled, rejects any
// incoming sequence number at or below the highest sequence number already
// accepted from a given session.
type Config struct {
	ReplayProtection bool
}

// replayState is the optional per-session high-water-mark tracker used when
// ReplayProtection is enabled.
type replayState struct {
	mu       sync.Mutex
	highSeen map[string]uint32
}

func newReplayState() *replayState {
	return &replayState{highSeen: make(map[string]uint32)}
}

func (r *replayState) check(sessionID string, seq uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq <= r.highSeen[sessionID] && r.highSeen[sessionID] != 0 {
		return apperr.ErrReplayDetected
	}
	r.highSeen[sessionID] = seq
	return nil
}

// Cipher encrypts and decrypts payloads for sessions produced by the session
// package. A single Cipher may be shared across many sessions; replay state,
// when enabled, is tracked per session id.
type Cipher struct {
	cfg    Config
	replay *replayState
}

// New creates a Cipher with the given configuration.
func New(cfg Config) *Cipher {
	c := &Cipher{cfg: cfg}
	if cfg.ReplayProtection {
		c.replay = newReplayState()
	}
	return c
}

// Encrypt seals plaintext under sess's shared secret, advancing the
// session's nonce counter (invariant I2).
func (c *Cipher) Encrypt(sess *session.Session, plaintext []byte) (*EncryptedPayload, error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("encrypt", "secretbox").Observe(time.Since(start).Seconds())
	}()

	seq := sess.NextNonceCounter()

	var nonce [nonceLen]byte
	binary.LittleEndian.PutUint32(nonce[:nonceCounterLen], seq)
	if _, err := rand.Read(nonce[nonceCounterLen:]); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCryptoUnavailable, err)
	}

	secret := sess.SharedSecret()
	sealed := secretbox.Seal(nil, plaintext, &nonce, &secret)

	return &EncryptedPayload{
		Ciphertext: sealed,
		Nonce:      nonce,
		Sequence:   seq,
		Timestamp:  time.Now(),
	}, nil
}

// Decrypt opens payload against sess's shared secret. On success it touches
// the session's last-activity timestamp without advancing the nonce
// counter. If replay protection is enabled and payload.Sequence does not
// exceed the highest sequence previously accepted for the session, Decrypt
// returns apperr.ErrReplayDetected. The replay check runs only after the box
// has opened, so a payload that fails authentication never moves the
// high-water mark.
func (c *Cipher) Decrypt(sess *session.Session, payload *EncryptedPayload) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("decrypt", "secretbox").Observe(time.Since(start).Seconds())
	}()

	secret := sess.SharedSecret()
	plaintext, ok := secretbox.Open(nil, payload.Ciphertext, &payload.Nonce, &secret)
	if !ok {
		return nil, apperr.ErrAuthenticationFailure
	}

	if c.replay != nil {
		if err := c.replay.check(sess.ID(), payload.Sequence); err != nil {
			return nil, err
		}
	}

	sess.Touch()
	return plaintext, nil
}
