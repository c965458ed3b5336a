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

package natsutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/carverauto/hostmon/pkg/events"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
)

// HostEventPublisher is implemented by EventPublisher.
type HostEventPublisher interface {
	PublishHostEvent(ctx context.Context, evt models.Event) (uint64, error)
}

// Forwarder drains a broker subscription into a HostEventPublisher. A
// failed publish is logged and the event skipped; the subscription's own
// bound keeps a stalled NATS from backing up into the registry.
type Forwarder struct {
	publisher HostEventPublisher
	logger    logger.Logger
	timeout   time.Duration

	published atomic.Uint64
	failed    atomic.Uint64
}

func NewForwarder(p HostEventPublisher, log logger.Logger, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = models.DefaultPublishTimeout
	}

	return &Forwarder{publisher: p, logger: log, timeout: timeout}
}

// Run forwards events until ctx is done or the subscription closes.
func (f *Forwarder) Run(ctx context.Context, sub *events.Subscription) {
	f.logger.Info().Str("subscription_id", sub.ID()).Msg("Forwarding host events to NATS")

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}

			f.forward(ctx, evt)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, evt models.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	seq, err := f.publisher.PublishHostEvent(pubCtx, evt)
	if err != nil {
		f.failed.Add(1)
		f.logger.Warn().
			Err(err).
			Str("host", evt.HostIdentity).
			Str("kind", evt.Kind.String()).
			Msg("Failed to publish host event")

		return
	}

	f.published.Add(1)
	f.logger.Debug().
		Str("host", evt.HostIdentity).
		Str("kind", evt.Kind.String()).
		Uint64("stream_seq", seq).
		Msg("Published host event")
}

func (f *Forwarder) Published() uint64 { return f.published.Load() }

func (f *Forwarder) Failed() uint64 { return f.failed.Load() }
