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

// Package audit persists session lifecycle events to PostgreSQL. It is an
// external collaborator, not part of the core: the core stays volatile
// (spec.md §6 "Persistence") and merely publishes events this package
// subscribes to. Only identifiers, reasons, and timestamps are ever
// written — never ciphertext, shared secrets, or sign keys.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/agentcrypt/eventbus"
	"github.com/sage-x-project/agentcrypt/internal/logger"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS session_lifecycle_events (
	event_id   TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	session_id TEXT NOT NULL,
	remote_did TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
)`

const insertEventSQL = `
INSERT INTO session_lifecycle_events (event_id, topic, session_id, remote_did, reason, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id) DO NOTHING`

// Sink writes session lifecycle events to Postgres via a connection pool.
type Sink struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// Open connects to Postgres at dsn and ensures the lifecycle table exists.
func Open(ctx context.Context, dsn string, connectTimeout time.Duration) (*Sink, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	if _, err := pool.Exec(connectCtx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: create table: %w", err)
	}

	return &Sink{
		pool: pool,
		log:  logger.GetDefaultLogger().WithFields(logger.String("component", "storage.audit.Sink")),
	}, nil
}

// Subscribe registers the sink's handler on bus for session lifecycle
// topics. A write failure is logged, never propagated: audit persistence is
// best-effort and must never affect the encryption/decryption hot path.
func (s *Sink) Subscribe(bus *eventbus.Bus) (dispose func()) {
	topics := []eventbus.Topic{eventbus.SessionCreated, eventbus.SessionExpired, eventbus.SessionRotated}
	disposers := make([]func(), 0, len(topics))
	for _, topic := range topics {
		disposers = append(disposers, bus.Subscribe(topic, s.record))
	}
	return func() {
		for _, d := range disposers {
			d()
		}
	}
}

func (s *Sink) record(evt eventbus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, insertEventSQL,
		evt.ID, string(evt.Topic), evt.SessionID, evt.RemoteDID, evt.Reason, evt.At,
	)
	if err != nil {
		s.log.Error("audit: failed to persist lifecycle event",
			logger.String("topic", string(evt.Topic)),
			logger.Error(err),
		)
	}
}

// Close releases the underlying connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}
