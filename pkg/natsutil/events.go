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

// Package natsutil publishes registry events to NATS JetStream as
// CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
)

const (
	eventSource     = "hostmon/server"
	eventTypePrefix = "com.carverauto.hostmon.host."
)

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
type EventPublisher struct {
	js            jetstream.JetStream
	stream        string
	subjectPrefix string
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js jetstream.JetStream, streamName, subjectPrefix string) *EventPublisher {
	return &EventPublisher{
		js:            js,
		stream:        streamName,
		subjectPrefix: subjectPrefix,
	}
}

// Subjects lists every subject the publisher writes to.
func (p *EventPublisher) Subjects() []string {
	return []string{
		p.subjectFor(models.EventUpdated),
		p.subjectFor(models.EventRemoved),
	}
}

func (p *EventPublisher) subjectFor(kind models.EventKind) string {
	return p.subjectPrefix + "." + kind.String()
}

// NewHostCloudEvent wraps a registry event in a CloudEvents v1.0 envelope.
func NewHostCloudEvent(evt models.Event, subject string) models.CloudEvent {
	at := evt.At

	return models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventTypePrefix + evt.Kind.String(),
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &at,
		Data:            evt,
	}
}

// PublishHostEvent publishes one registry event and returns the stream
// sequence JetStream assigned to it.
func (p *EventPublisher) PublishHostEvent(ctx context.Context, evt models.Event) (uint64, error) {
	event := NewHostCloudEvent(evt, p.subjectFor(evt.Kind))

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal host event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish host event: %w", err)
	}

	return ack.Sequence, nil
}

// Connect creates a NATS connection, with mTLS when cfg.Security asks for
// it, and logs connection state changes.
func Connect(cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	var opts []nats.Option

	if cfg.Security != nil && cfg.Security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.Name("hostmon-server"),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// CreateEventPublisher opens JetStream on nc, ensures the configured stream
// captures the host event subjects and returns a publisher for it.
func CreateEventPublisher(ctx context.Context, nc *nats.Conn, cfg *models.NATSConfig) (*EventPublisher, error) {
	var (
		js  jetstream.JetStream
		err error
	)

	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", cfg.Domain, err)
		}
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	publisher := NewEventPublisher(js, cfg.StreamName, cfg.SubjectPrefix)

	if err := EnsureStream(ctx, js, cfg.StreamName, publisher.Subjects()); err != nil {
		return nil, err
	}

	return publisher, nil
}

// EnsureStream creates the stream if it is missing, or adds any subject it
// does not already capture.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name string, subjects []string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: subjects,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	cfg := stream.CachedInfo().Config

	updated := append([]string(nil), cfg.Subjects...)
	for _, subject := range subjects {
		updated = ensureSubjectList(updated, subject)
	}

	if len(updated) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = updated

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to update subjects of stream %s: %w", name, err)
	}

	return nil
}

// ensureSubjectList appends subject unless an existing pattern already
// matches it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject applies NATS wildcard rules: "*" matches one token, ">"
// matches one or more trailing tokens.
func matchesSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, p := range pTokens {
		if p == ">" {
			return len(sTokens) > i
		}

		if i >= len(sTokens) {
			return false
		}

		if p != "*" && p != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
