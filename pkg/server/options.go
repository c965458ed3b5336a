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

package server

import (
	"time"

	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/metrics"
	"github.com/carverauto/hostmon/pkg/models"
	"github.com/carverauto/hostmon/pkg/session"
)

type Option func(*Listener)

func WithLogger(l logger.Logger) Option {
	return func(s *Listener) {
		s.logger = l
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(s *Listener) {
		s.recorder = r
	}
}

// WithMaxSessions bounds the number of concurrently running sessions.
func WithMaxSessions(n int) Option {
	return func(s *Listener) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

func WithOverflowPolicy(p models.OverflowPolicy) Option {
	return func(s *Listener) {
		if p != "" {
			s.overflow = p
		}
	}
}

func WithMaxFrameSize(n int) Option {
	return func(s *Listener) {
		s.maxFrameSize = n
	}
}

// WithKeepAlive sets the TCP keep-alive period of accepted connections.
// A negative value disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Listener) {
		s.keepAlive = d
	}
}

// WithSessionObserver registers fn to receive every finished session's
// outcome. fn runs on the session goroutine.
func WithSessionObserver(fn func(session.Outcome)) Option {
	return func(s *Listener) {
		s.observer = fn
	}
}

// WithConfig applies the listener settings from a validated ServerConfig.
func WithConfig(cfg *models.ServerConfig) Option {
	return func(s *Listener) {
		WithMaxSessions(cfg.MaxSessions)(s)
		WithOverflowPolicy(cfg.OverflowPolicy)(s)
		WithMaxFrameSize(cfg.MaxFrameSize)(s)
		WithKeepAlive(time.Duration(cfg.KeepAlive))(s)
	}
}
