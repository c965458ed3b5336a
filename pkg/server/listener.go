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

// Package server accepts agent connections and runs one session per
// connection against the host registry.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/metrics"
	"github.com/carverauto/hostmon/pkg/models"
	"github.com/carverauto/hostmon/pkg/session"
)

const maxAcceptDelay = time.Second

// Listener owns the TCP listener and the sessions it spawns.
//
// Stop only ends the accept loop; sessions already running keep going
// until their agents disconnect. Shutdown also closes them.
type Listener struct {
	store        session.Store
	logger       logger.Logger
	recorder     metrics.Recorder
	observer     func(session.Outcome)
	maxSessions  int
	overflow     models.OverflowPolicy
	maxFrameSize int
	keepAlive    time.Duration

	state atomic.Int32

	// mu serialises Start, Stop and Shutdown.
	mu           sync.Mutex
	ln           net.Listener
	acceptDone   chan struct{}
	cancelAccept context.CancelFunc

	slots    *semaphore.Weighted
	active   atomic.Int64
	rejected atomic.Uint64

	sessMu   sync.Mutex
	sessions map[string]context.CancelFunc
	sessWG   sync.WaitGroup
}

func New(store session.Store, opts ...Option) *Listener {
	l := &Listener{
		store:       store,
		logger:      logger.NewTestLogger(),
		recorder:    metrics.Nop(),
		maxSessions: models.DefaultMaxSessions,
		overflow:    models.OverflowReject,
		keepAlive:   models.DefaultKeepAlive,
		sessions:    make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.slots = semaphore.NewWeighted(int64(l.maxSessions))

	return l
}

// Start binds addr and begins accepting in the background. It is a no-op
// while the listener is already running. ctx bounds the bind and seeds the
// sessions' context values; cancelling it later does not stop anything.
func (l *Listener) Start(ctx context.Context, addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() != StateStopped {
		return nil
	}

	l.setState(StateStarting)

	lc := net.ListenConfig{KeepAlive: l.keepAlive}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		l.setState(StateStopped)

		return &BindError{Addr: addr, Err: err}
	}

	base := context.WithoutCancel(ctx)
	acceptCtx, cancel := context.WithCancel(base)

	l.ln = ln
	l.cancelAccept = cancel
	l.acceptDone = make(chan struct{})

	l.setState(StateRunning)

	go l.acceptLoop(acceptCtx, base, ln, l.acceptDone)

	l.logger.Info().
		Str("listen_addr", ln.Addr().String()).
		Int("max_sessions", l.maxSessions).
		Str("overflow_policy", string(l.overflow)).
		Msg("Listener started")

	return nil
}

// Stop closes the listening socket and waits for the accept loop to exit.
// Running sessions are left alone. It is a no-op unless running.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()
}

func (l *Listener) stopLocked() {
	if l.State() != StateRunning {
		return
	}

	l.setState(StateStopping)

	l.cancelAccept()

	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.logger.Warn().Err(err).Msg("Failed to close listener")
	}

	<-l.acceptDone

	l.ln = nil
	l.setState(StateStopped)

	l.logger.Info().Int("active_sessions", l.ActiveSessions()).Msg("Listener stopped")
}

// Shutdown stops accepting, closes every live session and waits for them
// to finish cleaning up or for ctx to expire. The wait happens without l.mu
// so Addr and Start stay responsive meanwhile.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.stopLocked()

	l.sessMu.Lock()
	for _, cancel := range l.sessions {
		cancel()
	}
	l.sessMu.Unlock()
	l.mu.Unlock()

	done := make(chan struct{})

	go func() {
		l.sessWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
}

// Addr returns the bound address, or nil when not running.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}

	return l.ln.Addr()
}

func (l *Listener) ActiveSessions() int {
	return int(l.active.Load())
}

// Rejected counts connections closed under the reject overflow policy.
func (l *Listener) Rejected() uint64 {
	return l.rejected.Load()
}

func (l *Listener) acceptLoop(ctx, base context.Context, ln net.Listener, done chan struct{}) {
	defer close(done)

	var delay time.Duration

	for {
		if l.overflow == models.OverflowQueue {
			if err := l.slots.Acquire(ctx, 1); err != nil {
				return
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if l.overflow == models.OverflowQueue {
				l.slots.Release(1)
			}

			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}

			delay = nextDelay(delay)

			l.logger.Error().Err(err).Dur("retry_in", delay).Msg("Accept failed")

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}

		delay = 0

		if l.overflow != models.OverflowQueue && !l.slots.TryAcquire(1) {
			l.reject(ctx, conn)
			continue
		}

		l.spawn(base, conn)
	}
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}

	if d *= 2; d > maxAcceptDelay {
		return maxAcceptDelay
	}

	return d
}

func (l *Listener) reject(ctx context.Context, conn net.Conn) {
	l.rejected.Add(1)
	l.recorder.SessionRejected(ctx)

	l.logger.Warn().
		Err(ErrCapacityExceeded).
		Str("remote_addr", conn.RemoteAddr().String()).
		Int("max_sessions", l.maxSessions).
		Msg("Connection rejected")

	_ = conn.Close()
}

func (l *Listener) spawn(base context.Context, conn net.Conn) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(base)

	l.sessMu.Lock()
	l.sessions[id] = cancel
	l.sessMu.Unlock()

	l.sessWG.Add(1)
	l.active.Add(1)
	l.recorder.SessionAccepted(ctx)

	go func() {
		defer l.sessWG.Done()

		out := session.Serve(ctx, conn, l.store,
			session.WithSessionID(id),
			session.WithLogger(l.logger),
			session.WithRecorder(l.recorder),
			session.WithMaxFrameSize(l.maxFrameSize),
		)

		cancel()

		l.sessMu.Lock()
		delete(l.sessions, id)
		l.sessMu.Unlock()

		l.active.Add(-1)
		l.slots.Release(1)
		l.recorder.SessionClosed(base, string(out.Reason))

		if l.observer != nil {
			l.observer(out)
		}
	}()
}
