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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostmon/pkg/models"
)

func updated(seq uint64) models.Event {
	return models.UpdatedEvent(models.StatusRecord{HostIdentity: fmt.Sprintf("h%d", seq)}, seq, time.Now())
}

func receive(t *testing.T, sub *Subscription, n int) []models.Event {
	t.Helper()

	out := make([]models.Event, 0, n)

	for len(out) < n {
		select {
		case evt, ok := <-sub.Events():
			require.True(t, ok, "channel closed after %d events", len(out))
			out = append(out, evt)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "timed out waiting for events", "got %d of %d", len(out), n)
		}
	}

	return out
}

func TestBroker_FanOutPreservesOrder(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	defer b.Close()

	subs := []*Subscription{b.Subscribe(), b.Subscribe(WithName("ui")), b.Subscribe(WithBufferSize(1000))}
	require.Equal(t, 3, b.Len())

	for i := uint64(1); i <= 100; i++ {
		b.Publish(updated(i))
	}

	for _, sub := range subs {
		got := receive(t, sub, 100)
		for i, evt := range got {
			assert.Equal(t, uint64(i+1), evt.Sequence)
		}

		assert.Zero(t, sub.Dropped())
	}
}

func TestBroker_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	defer b.Close()

	slow := b.Subscribe(WithBufferSize(10))
	fast := b.Subscribe(WithBufferSize(2000))

	done := make(chan struct{})

	go func() {
		for i := uint64(1); i <= 1000; i++ {
			b.Publish(updated(i))
		}

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a subscriber that never reads")
	}

	got := receive(t, fast, 1000)
	assert.Equal(t, uint64(1000), got[999].Sequence)

	// The delivery goroutine may already hold one event in flight, so the
	// slow subscriber sees at most buffer+1 events, newest last.
	assert.GreaterOrEqual(t, slow.Dropped(), uint64(1000-11))
	assert.Equal(t, slow.Dropped(), b.Dropped())

	kept := int(1000 - slow.Dropped())
	evts := receive(t, slow, kept)

	for i := 1; i < len(evts); i++ {
		assert.Less(t, evts[i-1].Sequence, evts[i].Sequence)
	}

	assert.Equal(t, uint64(1000), evts[len(evts)-1].Sequence)
}

func TestBroker_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	sub := b.Subscribe()

	b.Publish(updated(1))
	receive(t, sub, 1)

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.Len())

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Events():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// publishing after unsubscribe is harmless, as is a second unsubscribe
	b.Publish(updated(2))
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
	assert.Equal(t, uint64(1), sub.Delivered())
}

func TestBroker_Close(t *testing.T) {
	t.Parallel()

	b := NewBroker(WithDefaultBufferSize(4))
	a := b.Subscribe()
	c := b.Subscribe()

	assert.Equal(t, 4, a.limit)

	b.Close()
	b.Close()

	for _, sub := range []*Subscription{a, c} {
		_, ok := <-sub.Events()
		assert.False(t, ok)
	}

	late := b.Subscribe()
	_, ok := <-late.Events()
	assert.False(t, ok, "subscribing to a closed broker yields a closed channel")

	b.Publish(updated(1))
	assert.Equal(t, 0, b.Len())
}

func TestSubscription_Accessors(t *testing.T) {
	t.Parallel()

	b := NewBroker()
	defer b.Close()

	sub := b.Subscribe(WithName("nats"), WithBufferSize(0))
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "nats", sub.Name())
	assert.Equal(t, DefaultBufferSize, sub.limit, "non-positive sizes keep the default")
	assert.Equal(t, 0, sub.Pending())
}
