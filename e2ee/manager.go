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

// Package e2ee is the single public façade over identity, did, session,
// channel, envelope, and eventbus: a Manager owned by the caller for the
// lifetime of one agent process.
package e2ee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/agentcrypt/apperr"
	"github.com/sage-x-project/agentcrypt/channel"
	"github.com/sage-x-project/agentcrypt/did"
	"github.com/sage-x-project/agentcrypt/envelope"
	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/identity"
	"github.com/sage-x-project/agentcrypt/internal/logger"
	"github.com/sage-x-project/agentcrypt/internal/metrics"
	"github.com/sage-x-project/agentcrypt/session"
)

// Manager wires the local identity, the session store, the symmetric
// channel, and the envelope codec into EncryptTo/DecryptFrom. It owns the
// session store's background sweepers and must be Stop()'d when the caller
// is done with it.
type Manager struct {
	mu      sync.RWMutex
	local   *identity.IdentityKeyPair
	localID string

	store  *session.Store
	cipher *channel.Cipher
	bus    *eventbus.Bus
	log    logger.Logger

	stopped bool
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithReplayProtection enables per-session sequence-number replay rejection
// on the channel cipher.
func WithReplayProtection() Option {
	return func(m *Manager) { m.cipher = channel.New(channel.Config{ReplayProtection: true}) }
}

// NewManager creates a Manager for local, using cfg to tune the underlying
// session store, and starts the store's background sweepers.
func NewManager(local *identity.IdentityKeyPair, cfg session.Config, opts ...Option) *Manager {
	bus := eventbus.New()
	m := &Manager{
		local:   local,
		localID: did.EncodeKey(local.VerifyKey),
		store:   session.NewStore(cfg, bus),
		cipher:  channel.New(channel.Config{}),
		bus:     bus,
		log:     logger.GetDefaultLogger().WithFields(logger.String("component", "e2ee.Manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LocalDID returns this manager's own did:key identifier.
func (m *Manager) LocalDID() string { return m.localID }

// EncryptTo establishes (or reuses) a session with remoteDID, encrypts
// plaintext under it, and returns a signed envelope ready for transport.
func (m *Manager) EncryptTo(ctx context.Context, remoteDID string, plaintext []byte) (envelope.SignedEnvelope, error) {
	if err := m.ensureRunning(); err != nil {
		return envelope.SignedEnvelope{}, err
	}

	remoteVerifyKey, err := did.Resolve(remoteDID)
	if err != nil {
		return envelope.SignedEnvelope{}, err
	}

	sess, err := session.Establish(m.store, m.local, remoteDID, remoteVerifyKey)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("encrypt").Inc()
		return envelope.SignedEnvelope{}, err
	}

	start := time.Now()
	signed, err := envelope.EncryptThenSign(
		m.cipher, sess, envelope.TypeText,
		envelope.Party{"id": m.localID}, envelope.Party{"id": remoteDID},
		plaintext,
	)
	metrics.SessionDuration.WithLabelValues("encrypt").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("encrypt").Inc()
		return envelope.SignedEnvelope{}, err
	}

	metrics.CryptoOperations.WithLabelValues("encrypt", "secretbox").Inc()
	metrics.SessionMessageSize.WithLabelValues("outbound").Observe(float64(len(plaintext)))
	m.bus.Publish(eventbus.Event{
		Topic:     eventbus.MessageEncrypted,
		SessionID: sess.ID(),
		RemoteDID: remoteDID,
	})
	return signed, nil
}

// DecryptFrom verifies signed's signature against its attached sender key
// and the sender's resolved DID, then — only once verification succeeds —
// decrypts its payload under the matching session.
func (m *Manager) DecryptFrom(ctx context.Context, signed envelope.SignedEnvelope) ([]byte, error) {
	if err := m.ensureRunning(); err != nil {
		return nil, err
	}

	remoteDID := signed.Envelope.Sender.ID()
	if remoteDID == "" {
		metrics.CryptoErrors.WithLabelValues("decrypt").Inc()
		return nil, fmt.Errorf("%w: envelope has no sender id", apperr.ErrMalformedPayload)
	}
	remoteVerifyKey, err := did.Resolve(remoteDID)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("decrypt").Inc()
		return nil, err
	}

	sess, err := session.Establish(m.store, m.local, remoteDID, remoteVerifyKey)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("decrypt").Inc()
		return nil, err
	}

	start := time.Now()
	plaintext, err := envelope.VerifyThenDecrypt(m.cipher, sess, signed)
	metrics.SessionDuration.WithLabelValues("decrypt").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("decrypt").Inc()
		return nil, err
	}

	metrics.CryptoOperations.WithLabelValues("decrypt", "secretbox").Inc()
	metrics.SessionMessageSize.WithLabelValues("inbound").Observe(float64(len(plaintext)))
	m.bus.Publish(eventbus.Event{
		Topic:     eventbus.MessageDecrypted,
		SessionID: sess.ID(),
		RemoteDID: remoteDID,
	})
	return plaintext, nil
}

// Subscribe registers fn on the manager's event bus for topic, returning a
// disposer.
func (m *Manager) Subscribe(topic eventbus.Topic, fn eventbus.Handler) func() {
	return m.bus.Subscribe(topic, fn)
}

// SessionCount reports how many sessions are currently resident.
func (m *Manager) SessionCount() int { return m.store.Count() }

// Session looks up the resident session established with remoteDID, without
// establishing a new one. Returns apperr.ErrSessionNotFound if none is
// resident (never created, or already idle-expired).
func (m *Manager) Session(remoteDID string) (*session.Session, error) {
	remoteVerifyKey, err := did.Resolve(remoteDID)
	if err != nil {
		return nil, err
	}
	id := session.ComputeID(m.local.VerifyKey, remoteVerifyKey)
	sess, ok := m.store.Get(id)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	return sess, nil
}

// Bus returns the manager's underlying event bus, for external collaborators
// (e.g. storage/audit.Sink) that need to subscribe directly rather than
// through the single-handler Subscribe convenience above.
func (m *Manager) Bus() *eventbus.Bus { return m.bus }

// CloseSession explicitly tears down the resident session with remoteDID, if
// any, without waiting for idle expiry. A subsequent EncryptTo/DecryptFrom
// with the same remote establishes a fresh session whose nonce counter starts
// again from zero; its shared secret is re-derived from the same two identity
// keys and so has the same value as before.
func (m *Manager) CloseSession(remoteDID string) error {
	remoteVerifyKey, err := did.Resolve(remoteDID)
	if err != nil {
		return err
	}
	id := session.ComputeID(m.local.VerifyKey, remoteVerifyKey)
	m.store.Remove(id)
	return nil
}

// Stop halts the session store's background sweepers. Subsequent calls to
// EncryptTo/DecryptFrom return apperr.ErrSessionClosed. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.store.Close()
}

func (m *Manager) ensureRunning() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return apperr.ErrSessionClosed
	}
	return nil
}
