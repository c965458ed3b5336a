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

package agent

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/hostmon/pkg/codec"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
	"github.com/carverauto/hostmon/pkg/version"
)

const (
	defaultWriteTimeout      = 5 * time.Second
	defaultReconnectInitial  = 500 * time.Millisecond
	defaultReconnectMaxDelay = 30 * time.Second
)

// RecordSource produces the record pushed on each tick.
type RecordSource interface {
	Sample(ctx context.Context) (models.StatusRecord, error)
}

// Pusher keeps one connection to the server and writes a frame per
// interval, reconnecting with exponential backoff when the connection
// fails.
type Pusher struct {
	addr         string
	source       RecordSource
	interval     time.Duration
	writeTimeout time.Duration
	logger       logger.Logger
	dial         func(ctx context.Context, network, addr string) (net.Conn, error)
	newBackOff   func() backoff.BackOff

	sent       atomic.Uint64
	connects   atomic.Uint64
	sampleErrs atomic.Uint64
}

type PusherOption func(*Pusher)

func WithLogger(l logger.Logger) PusherOption {
	return func(p *Pusher) {
		p.logger = l
	}
}

func WithInterval(d time.Duration) PusherOption {
	return func(p *Pusher) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithWriteTimeout(d time.Duration) PusherOption {
	return func(p *Pusher) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) PusherOption {
	return func(p *Pusher) {
		p.dial = dial
	}
}

// WithBackOff sets the reconnect policy. fn is called once per outage.
func WithBackOff(fn func() backoff.BackOff) PusherOption {
	return func(p *Pusher) {
		p.newBackOff = fn
	}
}

func NewPusher(addr string, source RecordSource, opts ...PusherOption) *Pusher {
	dialer := &net.Dialer{KeepAlive: models.DefaultKeepAlive}

	p := &Pusher{
		addr:         addr,
		source:       source,
		interval:     models.DefaultPushInterval,
		writeTimeout: defaultWriteTimeout,
		logger:       logger.NewTestLogger(),
		dial:         dialer.DialContext,
		newBackOff:   defaultBackOff,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultReconnectInitial
	bo.MaxInterval = defaultReconnectMaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2

	return bo
}

// Run pushes until ctx is done and then returns ctx.Err().
func (p *Pusher) Run(ctx context.Context) error {
	p.logger.Info().
		Str("server_addr", p.addr).
		Dur("interval", p.interval).
		Str("version", version.GetFullVersion()).
		Msg("Starting push loop")

	for {
		conn, err := p.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		err = p.pushLoop(ctx, conn)

		_ = conn.Close()

		if ctx.Err() != nil {
			p.logger.Info().Msg("Push loop stopping due to context cancellation")

			return ctx.Err()
		}

		p.logger.Warn().Err(err).Str("server_addr", p.addr).Msg("Connection to server lost, reconnecting")
	}
}

func (p *Pusher) connect(ctx context.Context) (net.Conn, error) {
	operation := func() (net.Conn, error) {
		return p.dial(ctx, "tcp", p.addr)
	}

	notify := func(err error, next time.Duration) {
		p.logger.Warn().Err(err).Dur("retry_in", next).Str("server_addr", p.addr).Msg("Failed to connect to server")
	}

	conn, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, err
	}

	p.connects.Add(1)
	p.logger.Info().Str("server_addr", p.addr).Str("local_addr", conn.LocalAddr().String()).Msg("Connected to server")

	return conn, nil
}

func (p *Pusher) pushLoop(ctx context.Context, conn net.Conn) error {
	enc := codec.NewEncoder(conn)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.pushOnce(ctx, conn, enc); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pushOnce returns an error only when the connection is unusable.
func (p *Pusher) pushOnce(ctx context.Context, conn net.Conn, enc *codec.Encoder) error {
	rec, err := p.source.Sample(ctx)
	if err != nil {
		p.sampleErrs.Add(1)
		p.logger.Warn().Err(err).Msg("Failed to sample host, skipping push")

		return nil
	}

	if err := conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return err
	}

	if err := enc.Encode(rec); err != nil {
		if errors.Is(err, codec.ErrInvalidRecord) {
			p.logger.Warn().Err(err).Msg("Sampled record cannot be encoded, skipping push")

			return nil
		}

		return err
	}

	p.sent.Add(1)
	p.logger.Debug().
		Str("host", rec.HostIdentity).
		Float64("cpu_usage_percent", rec.CPUUsagePercent).
		Float64("memory_usage_percent", rec.MemoryUsagePercent()).
		Msg("Pushed status record")

	return nil
}

// Sent counts frames written successfully.
func (p *Pusher) Sent() uint64 { return p.sent.Load() }

// Connects counts established connections.
func (p *Pusher) Connects() uint64 { return p.connects.Load() }

// SampleErrors counts ticks skipped because sampling failed.
func (p *Pusher) SampleErrors() uint64 { return p.sampleErrs.Load() }
