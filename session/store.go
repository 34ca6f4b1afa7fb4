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
	"sync"
	"time"

	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/internal/logger"
	"github.com/sage-x-project/agentcrypt/internal/metrics"
)

const (
	// DefaultSessionTimeout is the idle duration after which a session is
	// evicted on next lookup.
	DefaultSessionTimeout = 30 * time.Minute
	// DefaultMaxSessions bounds the store's resident set; Put evicts the
	// least-recently-active session once at capacity.
	DefaultMaxSessions = 100
	// DefaultKeyRotationInterval is how long a session may live before a
	// forward-secrecy rotation sweep replaces it, when enabled.
	DefaultKeyRotationInterval = 15 * time.Minute
	// sweepInterval is the coarse cadence of the background idle/rotation
	// sweep goroutine.
	sweepInterval = 60 * time.Second
)

// Config tunes a Store's eviction, expiry, and rotation behavior.
type Config struct {
	SessionTimeout       time.Duration
	MaxSessions          int
	EnableForwardSecrecy bool
	KeyRotationInterval  time.Duration
}

// withDefaults fills zero-valued fields with the package defaults.
func (c Config) withDefaults() Config {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.KeyRotationInterval <= 0 {
		c.KeyRotationInterval = DefaultKeyRotationInterval
	}
	return c
}

// Store is the in-memory, capacity-bounded registry of live sessions. A
// single RWMutex guards the map; individual sessions carry their own mutex
// for field-level access.
type Store struct {
	mu  sync.RWMutex
	cfg Config

	sessions map[string]*Session
	bus      *eventbus.Bus
	log      logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStore creates a Store and starts its background sweep goroutine. Close
// must be called to stop the goroutine.
func NewStore(cfg Config, bus *eventbus.Bus) *Store {
	s := &Store{
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
		bus:      bus,
		log:      logger.GetDefaultLogger().WithFields(logger.String("component", "session.Store")),
		stopCh:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Count returns the number of sessions currently resident.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Get looks up a session by id. A session that has been idle longer than
// SessionTimeout is removed and apperr-style "not found" semantics apply: Get
// returns ok=false exactly as if the session never existed.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Since(sess.LastActivityAt()) > s.cfg.SessionTimeout {
		s.removeExpired(sess, "idle timeout")
		return nil, false
	}
	return sess, true
}

// Put inserts sess. If a session already resides under sess.id, it is
// replaced and treated as a rotation (session:rotated); otherwise, if the
// store is at capacity, the least-recently-active resident session is
// evicted first to make room.
func (s *Store) Put(sess *Session) {
	var victim *Session
	var rotated bool
	s.mu.Lock()
	if _, exists := s.sessions[sess.id]; exists {
		rotated = true
	} else if len(s.sessions) >= s.cfg.MaxSessions {
		if victimID, ok := s.lruLocked(); ok {
			victim = s.sessions[victimID]
			delete(s.sessions, victimID)
			s.log.Debug("evicted session at capacity", logger.String("session_id", victimID))
		}
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if victim != nil {
		metrics.SessionsEvicted.Inc()
		metrics.SessionsActive.Dec()
		s.bus.Publish(eventbus.Event{
			Topic:     eventbus.SessionExpired,
			SessionID: victim.id,
			RemoteDID: victim.remoteDID,
			Reason:    "eviction",
		})
	}

	if rotated {
		s.bus.Publish(eventbus.Event{
			Topic:     eventbus.SessionRotated,
			SessionID: sess.id,
			RemoteDID: sess.remoteDID,
		})
		return
	}

	metrics.SessionsCreated.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	s.bus.Publish(eventbus.Event{
		Topic:     eventbus.SessionCreated,
		SessionID: sess.id,
		RemoteDID: sess.remoteDID,
	})
}

// Remove deletes a session unconditionally, without emitting an event. Used
// when a caller (e.g. the e2ee facade) explicitly tears a session down.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if existed {
		metrics.SessionsClosed.Inc()
		metrics.SessionsActive.Dec()
	}
}

// Close stops the background sweep goroutine. Idempotent.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// lruLocked returns the id of the least-recently-active session. Callers
// must hold s.mu.
func (s *Store) lruLocked() (string, bool) {
	var victimID string
	var oldest time.Time
	first := true
	for id, sess := range s.sessions {
		last := sess.LastActivityAt()
		if first || last.Before(oldest) {
			victimID, oldest, first = id, last, false
		}
	}
	return victimID, !first
}

func (s *Store) removeExpired(sess *Session, reason string) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	metrics.SessionsExpired.Inc()
	metrics.SessionsActive.Dec()
	s.bus.Publish(eventbus.Event{
		Topic:     eventbus.SessionExpired,
		SessionID: sess.id,
		RemoteDID: sess.remoteDID,
		Reason:    reason,
	})
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepIdle()
			if s.cfg.EnableForwardSecrecy {
				s.sweepRotation()
			}
		}
	}
}

// sweepIdle removes every session that has exceeded SessionTimeout without
// waiting for a lookup to trigger it.
func (s *Store) sweepIdle() {
	s.mu.RLock()
	var expired []*Session
	for _, sess := range s.sessions {
		if time.Since(sess.LastActivityAt()) > s.cfg.SessionTimeout {
			expired = append(expired, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range expired {
		s.removeExpired(sess, "idle timeout")
	}
}

// sweepRotation marks sessions older than KeyRotationInterval for rotation.
// Rotation itself (re-deriving a fresh shared secret) is the caller's
// responsibility via Establish; the store only evicts the aged session so
// the next Establish call for that DID pair creates a replacement.
func (s *Store) sweepRotation() {
	s.mu.RLock()
	var aged []*Session
	for _, sess := range s.sessions {
		if time.Since(sess.CreatedAt()) > s.cfg.KeyRotationInterval {
			aged = append(aged, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range aged {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()

		metrics.SessionsActive.Dec()
		s.bus.Publish(eventbus.Event{
			Topic:     eventbus.SessionRotated,
			SessionID: sess.id,
			RemoteDID: sess.remoteDID,
			Reason:    "forward secrecy rotation",
		})
	}
}
