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
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostmon/pkg/events"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
)

var errTestFixture = errors.New("fixture error")

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  "hostmon.hosts.updated",
			want:     []string{"hostmon.hosts.updated"},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"hostmon.hosts.*"},
			subject:  "hostmon.hosts.updated",
			want:     []string{"hostmon.hosts.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"hostmon.>"},
			subject:  "hostmon.hosts.removed",
			want:     []string{"hostmon.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"events.syslog.*"},
			subject:  "hostmon.hosts.updated",
			want:     []string{"events.syslog.*", "hostmon.hosts.updated"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, result)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "hostmon.hosts.updated", "hostmon.hosts.updated", true},
		{"single wildcard", "hostmon.*.updated", "hostmon.hosts.updated", true},
		{"greater wildcard", "hostmon.>", "hostmon.hosts.updated", true},
		{"greater needs a token", "hostmon.hosts.>", "hostmon.hosts", false},
		{"no match length", "hostmon.*", "hostmon.hosts.updated", false},
		{"subject longer than pattern", "hostmon.hosts", "hostmon.hosts.updated", false},
		{"no match tokens", "events.syslog.*", "hostmon.hosts.updated", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := matchesSubject(tc.pattern, tc.subject); got != tc.expected {
				t.Fatalf("matchesSubject(%q, %q) = %t, want %t", tc.pattern, tc.subject, got, tc.expected)
			}
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := isStreamMissingErr(tc.err); got != tc.expected {
				t.Fatalf("isStreamMissingErr(%v) = %t, want %t", tc.err, got, tc.expected)
			}
		})
	}
}

func TestNewHostCloudEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	evt := models.RemovedEvent("db-1", at)

	ce := NewHostCloudEvent(evt, "hostmon.hosts.removed")

	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.NotEmpty(t, ce.ID)
	assert.Equal(t, "hostmon/server", ce.Source)
	assert.Equal(t, "com.carverauto.hostmon.host.removed", ce.Type)
	assert.Equal(t, "hostmon.hosts.removed", ce.Subject)
	require.NotNil(t, ce.Time)
	assert.True(t, at.Equal(*ce.Time))
	assert.Equal(t, evt, ce.Data)
}

func TestTLSConfig_RequiresMTLS(t *testing.T) {
	t.Parallel()

	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{Mode: models.SecurityModeNone})
	require.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{
		Mode:    models.SecurityModeMTLS,
		CertDir: t.TempDir(),
		TLS:     models.TLSConfig{CertFile: "client.pem", KeyFile: "client-key.pem", CAFile: "root.pem"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load client certificate")
}

func TestResolveTLSPaths(t *testing.T) {
	t.Parallel()

	got := resolveTLSPaths(models.TLSConfig{
		CertFile: "client.pem",
		KeyFile:  "/abs/key.pem",
	}, "/etc/hostmon/certs")

	assert.Equal(t, "/etc/hostmon/certs/client.pem", got.CertFile)
	assert.Equal(t, "/abs/key.pem", got.KeyFile)
	assert.Empty(t, got.CAFile)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.Event
	fail   bool
}

func (f *fakePublisher) PublishHostEvent(_ context.Context, evt models.Event) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return 0, errTestFixture
	}

	f.events = append(f.events, evt)

	return uint64(len(f.events)), nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.events)
}

func TestForwarder_DrainsSubscription(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker()
	sub := broker.Subscribe(events.WithName("nats"))
	pub := &fakePublisher{}
	fwd := NewForwarder(pub, logger.NewTestLogger(), time.Second)

	done := make(chan struct{})

	go func() {
		fwd.Run(context.Background(), sub)
		close(done)
	}()

	broker.Publish(models.UpdatedEvent(models.StatusRecord{HostIdentity: "a"}, 1, time.Now()))
	broker.Publish(models.RemovedEvent("a", time.Now()))

	require.Eventually(t, func() bool { return pub.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(2), fwd.Published())

	broker.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the subscription closed")
	}
}

func TestForwarder_CountsFailures(t *testing.T) {
	t.Parallel()

	broker := events.NewBroker()
	defer broker.Close()

	sub := broker.Subscribe()
	fwd := NewForwarder(&fakePublisher{fail: true}, logger.NewTestLogger(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go fwd.Run(ctx, sub)

	broker.Publish(models.RemovedEvent("a", time.Now()))

	require.Eventually(t, func() bool { return fwd.Failed() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, fwd.Published())
}

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})

	return srv
}

func TestEventPublisher_JetStream(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)

	cfg := &models.NATSConfig{Enabled: true, URL: srv.ClientURL()}
	require.NoError(t, cfg.Validate())

	nc, err := Connect(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(nc.Close)

	publisher, err := CreateEventPublisher(ctx, nc, cfg)
	require.NoError(t, err)

	rec := models.StatusRecord{HostIdentity: "web-1", CPUCoreCount: 4, Status: "Connected"}

	seq, err := publisher.PublishHostEvent(ctx, models.UpdatedEvent(rec, 1, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	_, err = publisher.PublishHostEvent(ctx, models.RemovedEvent("web-1", time.Now()))
	require.NoError(t, err)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, models.DefaultNATSStream)
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.State.Msgs)
	assert.ElementsMatch(t, []string{"hostmon.hosts.updated", "hostmon.hosts.removed"}, info.Config.Subjects)

	msg, err := stream.GetLastMsgForSubject(ctx, "hostmon.hosts.updated")
	require.NoError(t, err)

	var ce struct {
		models.CloudEvent
		Data models.Event `json:"data"`
	}

	require.NoError(t, json.Unmarshal(msg.Data, &ce))
	assert.Equal(t, "com.carverauto.hostmon.host.updated", ce.Type)
	assert.Equal(t, models.EventUpdated, ce.Data.Kind)
	require.NotNil(t, ce.Data.Record)
	assert.Equal(t, 4, ce.Data.Record.CPUCoreCount)

	// a second publisher finds the stream and leaves it alone
	_, err = CreateEventPublisher(ctx, nc, cfg)
	require.NoError(t, err)
}

func TestEnsureStream_AddsMissingSubjects(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{Name: "shared", Subjects: []string{"events.syslog.*"}})
	require.NoError(t, err)

	require.NoError(t, EnsureStream(ctx, js, "shared", []string{"hostmon.hosts.updated", "hostmon.hosts.removed"}))

	stream, err := js.Stream(ctx, "shared")
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"events.syslog.*", "hostmon.hosts.updated", "hostmon.hosts.removed"},
		stream.CachedInfo().Config.Subjects)
}
