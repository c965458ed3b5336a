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

// Package logger provides JSON structured logging using zerolog, with optional
// export of logs, metrics and traces over OTLP.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//nolint:gochecknoglobals // process-wide default logger, mirrors zerolog/log
var globalLogger zerolog.Logger

type Config struct {
	Level      string     `json:"level" yaml:"level"`
	Debug      bool       `json:"debug" yaml:"debug"`
	Output     string     `json:"output" yaml:"output"`
	TimeFormat string     `json:"time_format" yaml:"time_format"`
	OTel       OTelConfig `json:"otel" yaml:"otel"`
}

func init() {
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Init replaces the global logger according to config. When OTel log export
// is enabled every line is also shipped to the collector.
func Init(ctx context.Context, config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	output, err := buildOutput(ctx, config)
	if err != nil {
		return err
	}

	level, err := parseLevel(config)
	if err != nil {
		return err
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	globalLogger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = globalLogger

	return nil
}

// New builds a Logger from config without touching the global logger.
func New(ctx context.Context, config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	output, err := buildOutput(ctx, config)
	if err != nil {
		return nil, err
	}

	level, err := parseLevel(config)
	if err != nil {
		return nil, err
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	return Wrap(zerolog.New(output).Level(level).With().Timestamp().Logger()), nil
}

func buildOutput(ctx context.Context, config *Config) (io.Writer, error) {
	var output io.Writer = os.Stdout

	if config.Output == "stderr" {
		output = os.Stderr
	}

	if config.OTel.Enabled && config.OTel.Endpoint != "" {
		otelWriter, err := NewOTELWriter(ctx, config.OTel)
		if err != nil {
			return nil, err
		}

		output = io.MultiWriter(output, otelWriter)
	}

	return output, nil
}

func parseLevel(config *Config) (zerolog.Level, error) {
	if config.Debug {
		return zerolog.DebugLevel, nil
	}

	if config.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(config.Level)
}

func SetLevel(level zerolog.Level) {
	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

func SetDebug(debug bool) {
	if debug {
		SetLevel(zerolog.DebugLevel)
	} else {
		SetLevel(zerolog.InfoLevel)
	}
}

func GetLogger() zerolog.Logger {
	return globalLogger
}

func Debug() *zerolog.Event {
	return globalLogger.Debug()
}

func Info() *zerolog.Event {
	return globalLogger.Info()
}

func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

func Error() *zerolog.Event {
	return globalLogger.Error()
}

func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

// Shutdown flushes and stops every OTel pipeline started by this package.
func Shutdown() error {
	return ShutdownOTEL()
}
