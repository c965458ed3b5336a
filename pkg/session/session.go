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

// Package session runs one agent connection: decode status records from the
// stream, store them, and withdraw every host the connection reported once
// it ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/hostmon/pkg/codec"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/metrics"
)

const tracerName = "hostmon/session"

// ErrPanic wraps a panic recovered while handling the session.
var ErrPanic = errors.New("session panicked")

// Reason says why a session ended.
type Reason string

const (
	ReasonEndOfStream    Reason = "end_of_stream"
	ReasonDecodeError    Reason = "decode_error"
	ReasonTransportError Reason = "transport_error"
	ReasonCancelled      Reason = "cancelled"
	ReasonInternalError  Reason = "internal_error"
)

// Outcome summarises a finished session.
type Outcome struct {
	SessionID  string
	RemoteAddr string
	Reason     Reason
	// Records counts records handed to the store.
	Records int
	// Hosts lists every identity seen, sorted; each was removed on exit.
	Hosts    []string
	Err      error
	Duration time.Duration
}

type options struct {
	id           string
	logger       logger.Logger
	recorder     metrics.Recorder
	tracer       trace.Tracer
	maxFrameSize int
}

type Option func(*options)

func WithSessionID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithMaxFrameSize limits the frame body size accepted from the agent.
func WithMaxFrameSize(n int) Option {
	return func(o *options) {
		o.maxFrameSize = n
	}
}

type session struct {
	options

	conn      Conn
	store     Store
	remote    string
	closeOnce sync.Once

	seen  map[string]struct{}
	hosts []string
}

// Serve reads records from conn until the stream ends, a frame cannot be
// decoded, the transport fails or ctx is cancelled. Cancelling ctx closes
// conn to unblock the pending read.
//
// Whatever the exit path, including a panic in store, conn is closed and
// then store.Remove is called exactly once for each host identity that
// arrived on this connection. Serve never reconnects.
func Serve(ctx context.Context, conn Conn, store Store, opts ...Option) Outcome {
	s := &session{
		conn:  conn,
		store: store,
		seen:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(&s.options)
	}

	s.applyDefaults()

	if a, ok := conn.(interface{ RemoteAddr() net.Addr }); ok && a.RemoteAddr() != nil {
		s.remote = a.RemoteAddr().String()
	}

	return s.run(ctx)
}

func (s *session) applyDefaults() {
	if s.id == "" {
		s.id = uuid.NewString()
	}

	if s.logger == nil {
		s.logger = logger.NewTestLogger()
	}

	if s.recorder == nil {
		s.recorder = metrics.Nop()
	}

	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
}

func (s *session) run(ctx context.Context) (out Outcome) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "agent.session", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("net.peer.address", s.remote),
	))

	log := logger.Wrap(s.logger.With().
		Str("session_id", s.id).
		Str("remote_addr", s.remote).
		Logger())

	log.Info().Msg("Connection opened")

	stop := context.AfterFunc(ctx, s.closeConn)

	out = Outcome{SessionID: s.id, RemoteAddr: s.remote}

	defer func() {
		if p := recover(); p != nil {
			out.Reason = ReasonInternalError
			out.Err = fmt.Errorf("%w: %v", ErrPanic, p)

			log.Error().
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Msg("Session panicked")
		}

		stop()
		s.closeConn()
		s.removeHosts(log)

		out.Hosts = s.sortedHosts()
		out.Duration = time.Since(start)

		s.finish(log, span, &out)
	}()

	s.loop(ctx, log, &out)

	return out
}

func (s *session) loop(ctx context.Context, log logger.Logger, out *Outcome) {
	dec := codec.NewDecoder(s.conn, codec.WithMaxFrameSize(s.maxFrameSize))

	for {
		res, err := dec.Decode()

		switch {
		case err != nil && ctx.Err() != nil:
			out.Reason = ReasonCancelled
			out.Err = ctx.Err()

			return
		case errors.Is(err, codec.ErrDecode):
			out.Reason = ReasonDecodeError
			out.Err = err

			log.Warn().Err(err).Int("records", out.Records).Msg("Decode error")
			s.recorder.DecodeError(ctx, decodeReason(err))

			return
		case err != nil:
			out.Reason = ReasonTransportError
			out.Err = err

			return
		case res.Kind == codec.KindEndOfStream:
			out.Reason = ReasonEndOfStream

			return
		}

		rec := res.Record

		if _, ok := s.seen[rec.HostIdentity]; !ok {
			s.seen[rec.HostIdentity] = struct{}{}
			s.hosts = append(s.hosts, rec.HostIdentity)
		}

		s.store.Upsert(rec)
		out.Records++
		s.recorder.RecordIngested(ctx)
	}
}

func decodeReason(err error) string {
	var de *codec.DecodeError
	if errors.As(err, &de) {
		return string(de.Reason)
	}

	return string(ReasonDecodeError)
}

func (s *session) closeConn() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// removeHosts withdraws each identity once. A panicking Remove does not
// stop the others from being attempted.
func (s *session) removeHosts(log logger.Logger) {
	for _, host := range s.hosts {
		func() {
			defer func() {
				if p := recover(); p != nil {
					log.Error().Interface("panic", p).Str("host", host).Msg("Remove panicked")
				}
			}()

			s.store.Remove(host)
		}()
	}
}

func (s *session) sortedHosts() []string {
	hosts := append([]string(nil), s.hosts...)
	sort.Strings(hosts)

	return hosts
}

func (s *session) finish(log logger.Logger, span trace.Span, out *Outcome) {
	defer span.End()

	span.SetAttributes(
		attribute.String("session.reason", string(out.Reason)),
		attribute.Int("session.records", out.Records),
		attribute.Int("session.hosts", len(out.Hosts)),
	)

	evt := log.Info()
	if out.Reason == ReasonTransportError || out.Reason == ReasonInternalError {
		evt = log.Warn()
	}

	if out.Err != nil {
		evt = evt.Err(out.Err)

		if out.Reason != ReasonCancelled {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, string(out.Reason))
		}
	}

	evt.Str("reason", string(out.Reason)).
		Int("records", out.Records).
		Strs("hosts", out.Hosts).
		Dur("duration", out.Duration).
		Msg("Connection closed")
}
