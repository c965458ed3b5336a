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

//go:generate mockgen -destination=mock_logger.go -package=logger github.com/carverauto/hostmon/pkg/logger Logger

package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the injectable logging surface every hostmon component takes.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	Panic() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	WithFields(fields map[string]interface{}) zerolog.Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

type zlogger struct {
	logger zerolog.Logger
}

// Wrap adapts a zerolog.Logger to Logger.
func Wrap(l zerolog.Logger) Logger {
	return &zlogger{logger: l}
}

func (l *zlogger) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *zlogger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *zlogger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *zlogger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *zlogger) Error() *zerolog.Event { return l.logger.Error() }
func (l *zlogger) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *zlogger) Panic() *zerolog.Event { return l.logger.Panic() }
func (l *zlogger) With() zerolog.Context { return l.logger.With() }

func (l *zlogger) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *zlogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	return l.logger.With().Fields(fields).Logger()
}

func (l *zlogger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *zlogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// NewTestLogger creates a no-op logger for testing that discards all output
func NewTestLogger() Logger {
	return Wrap(zerolog.New(io.Discard).Level(zerolog.Disabled))
}
