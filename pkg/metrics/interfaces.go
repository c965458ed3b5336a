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

// Package metrics exposes the ingestion pipeline's OpenTelemetry instruments.
package metrics

import "context"

//go:generate mockgen -destination=mock_recorder.go -package=metrics github.com/carverauto/hostmon/pkg/metrics Recorder

// Recorder receives measurements from the listener and its sessions.
type Recorder interface {
	SessionAccepted(ctx context.Context)
	SessionRejected(ctx context.Context)
	SessionClosed(ctx context.Context, reason string)
	RecordIngested(ctx context.Context)
	DecodeError(ctx context.Context, reason string)
}

type nopRecorder struct{}

// Nop discards everything.
func Nop() Recorder { return nopRecorder{} }

func (nopRecorder) SessionAccepted(context.Context)       {}
func (nopRecorder) SessionRejected(context.Context)       {}
func (nopRecorder) SessionClosed(context.Context, string) {}
func (nopRecorder) RecordIngested(context.Context)        {}
func (nopRecorder) DecodeError(context.Context, string)   {}
