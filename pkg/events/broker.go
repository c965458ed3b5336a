/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package events fans registry events out to independent subscribers.
//
// Publish never blocks. Every subscription owns a pending queue capped at its
// buffer size and drained by its own goroutine; when a subscriber falls
// behind, the oldest pending event is discarded.
package events

import (
	"sync"

	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
)

// DefaultBufferSize is the pending-event limit of a subscription.
const DefaultBufferSize = models.DefaultSubscriberSize

// Publisher is what the registry needs from a broker.
type Publisher interface {
	Publish(evt models.Event)
}

type Broker struct {
	logger     logger.Logger
	bufferSize int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

var _ Publisher = (*Broker)(nil)

type BrokerOption func(*Broker)

func WithLogger(l logger.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = l
	}
}

// WithDefaultBufferSize sets the limit used by subscriptions that do not
// choose their own.
func WithDefaultBufferSize(n int) BrokerOption {
	return func(b *Broker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		logger:     logger.NewTestLogger(),
		bufferSize: DefaultBufferSize,
		subs:       make(map[*Subscription]struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a new subscription. Subscribing to a closed broker
// returns a subscription whose channel is already closed.
func (b *Broker) Subscribe(opts ...SubscribeOption) *Subscription {
	sub := newSubscription(b.bufferSize, opts...)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()

		return sub
	}

	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	b.logger.Debug().
		Str("subscription_id", sub.id).
		Str("name", sub.name).
		Int("buffer", sub.limit).
		Msg("Subscriber added")

	return sub
}

// Unsubscribe stops delivery and closes the subscription's channel.
// Events still pending are discarded.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	sub.close()

	if ok {
		b.logger.Debug().
			Str("subscription_id", sub.id).
			Str("name", sub.name).
			Uint64("dropped", sub.Dropped()).
			Msg("Subscriber removed")
	}
}

// Publish hands evt to every current subscriber without waiting for any
// of them.
func (b *Broker) Publish(evt models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		sub.enqueue(evt)
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Dropped sums the events discarded across live subscriptions.
func (b *Broker) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total uint64
	for sub := range b.subs {
		total += sub.Dropped()
	}

	return total
}

// Close unsubscribes everyone. Later Publish calls are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}
