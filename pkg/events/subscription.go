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

package events

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/carverauto/hostmon/pkg/models"
)

type SubscribeOption func(*Subscription)

// WithBufferSize caps the number of pending events for this subscription.
func WithBufferSize(n int) SubscribeOption {
	return func(s *Subscription) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithName labels the subscription in logs.
func WithName(name string) SubscribeOption {
	return func(s *Subscription) {
		s.name = name
	}
}

// Subscription is one consumer's view of the event stream. Events arrive on
// Events() in publication order, minus any dropped for overflow.
type Subscription struct {
	id    string
	name  string
	limit int

	mu      sync.Mutex
	pending *queue.Queue
	closed  bool

	wake chan struct{}
	done chan struct{}
	out  chan models.Event

	dropped   atomic.Uint64
	delivered atomic.Uint64
	closeOnce sync.Once
}

func newSubscription(limit int, opts ...SubscribeOption) *Subscription {
	s := &Subscription{
		id:      uuid.NewString(),
		limit:   limit,
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		out:     make(chan models.Event),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.deliver()

	return s
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Name() string { return s.name }

// Events is closed once the subscription is removed or the broker closes.
func (s *Subscription) Events() <-chan models.Event {
	return s.out
}

// Dropped counts events discarded because the subscriber fell behind.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Delivered counts events received from Events().
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Pending returns the number of events waiting for delivery.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending.Length()
}

func (s *Subscription) enqueue(evt models.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.pending.Length() >= s.limit {
		s.pending.Remove()
		s.dropped.Add(1)
	}

	s.pending.Add(evt)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) next() (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Length() == 0 {
		return models.Event{}, false
	}

	return s.pending.Remove().(models.Event), true
}

func (s *Subscription) deliver() {
	defer close(s.out)

	for {
		evt, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- evt:
			s.delivered.Add(1)
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = queue.New()
		s.mu.Unlock()

		close(s.done)
	})
}
