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

// Package eventbus is a topic-keyed publish/subscribe surface for the
// lifecycle and crypto-operation events the core emits. Dispatch is
// synchronous and best-effort: a failing subscriber never propagates out of
// Publish and never affects the operation that published the event.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/agentcrypt/internal/logger"
	"github.com/sage-x-project/agentcrypt/internal/metrics"
)

// Topic names the enumerated set of events the core can publish.
type Topic string

const (
	SessionCreated   Topic = "session:created"
	SessionExpired   Topic = "session:expired"
	SessionRotated   Topic = "session:rotated"
	MessageEncrypted Topic = "message:encrypted"
	MessageDecrypted Topic = "message:decrypted"
	ErrorTopic       Topic = "error"
	// All matches every topic; subscribing to it observes the full stream.
	All Topic = "*"
)

// Event is the immutable record handed to subscribers. It never carries key
// material: only identifiers, timestamps, sequence numbers, and an optional
// error/reason.
type Event struct {
	ID        string
	Topic     Topic
	SessionID string
	RemoteDID string
	Sequence  uint32
	Reason    string
	Err       error
	At        time.Time
}

// Handler observes published events. It must not block for long: dispatch
// happens synchronously on the publisher's goroutine.
type Handler func(Event)

// Dispose removes a subscription.
type Dispose func()

// Bus is a concrete topic/subscriber registry.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic]map[int]Handler
	next int
	log  logger.Logger
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Topic]map[int]Handler),
		log:  logger.GetDefaultLogger(),
	}
}

// Subscribe registers fn for topic (or All) and returns a disposer that
// removes it.
func (b *Bus) Subscribe(topic Topic, fn Handler) Dispose {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.next
	b.next++
	b.subs[topic][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish dispatches evt to every subscriber of evt.Topic and of All. A
// handler that panics is recovered and logged; it never propagates to the
// caller of Publish and never prevents other handlers from running.
func (b *Bus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	metrics.EventsPublished.WithLabelValues(string(evt.Topic)).Inc()

	b.mu.RLock()
	handlers := make([]Handler, 0, 4)
	for _, topic := range [2]Topic{evt.Topic, All} {
		for _, fn := range b.subs[topic] {
			handlers = append(handlers, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		b.dispatchSafely(fn, evt)
	}
}

func (b *Bus) dispatchSafely(fn Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberPanics.WithLabelValues(string(evt.Topic)).Inc()
			b.log.Error("eventbus: subscriber panicked",
				logger.String("topic", string(evt.Topic)),
				logger.Any("recovered", r),
			)
		}
	}()
	fn(evt)
}
