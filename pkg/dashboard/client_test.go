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

package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8090", want: "ws://localhost:8090/api/stream"},
		{in: "https://mon.example.com/", want: "wss://mon.example.com/api/stream"},
		{in: "ws://localhost:8090/custom", want: "ws://localhost:8090/custom"},
		{in: "ftp://nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := StreamURL(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, errUnsupportedScheme)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// streamServer sends a snapshot and one event on every connection, then
// closes the first connection to force a reconnect.
func streamServer(t *testing.T, apiKey string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var conns atomic.Int64

	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != apiKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer conn.Close()

		n := conns.Add(1)

		_ = conn.WriteJSON(models.StreamMessage{Type: models.StreamSnapshot, Hosts: []models.HostView{view("a", 1)}})

		evt := updated("b", 2, 10)
		_ = conn.WriteJSON(models.StreamMessage{Type: models.StreamEvent, Event: &evt})

		if n == 1 {
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	t.Cleanup(srv.Close)

	return srv, &conns
}

func collect() (func(tea.Msg), <-chan tea.Msg) {
	ch := make(chan tea.Msg, 64)

	return func(msg tea.Msg) { ch <- msg }, ch
}

func TestStreamClient_ReceivesAndReconnects(t *testing.T) {
	srv, conns := streamServer(t, "k")

	url, err := StreamURL(srv.URL)
	require.NoError(t, err)

	client := NewStreamClient(url, "k", logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send, msgs := collect()
	done := make(chan error, 1)

	go func() { done <- client.Run(ctx, send) }()

	var snapshots, events int

	deadline := time.After(5 * time.Second)

	for snapshots < 2 || events < 2 {
		select {
		case msg := <-msgs:
			if sm, ok := msg.(models.StreamMessage); ok {
				switch sm.Type {
				case models.StreamSnapshot:
					snapshots++
					require.Len(t, sm.Hosts, 1)
					assert.Equal(t, "a", sm.Hosts[0].Latest.HostIdentity)
				case models.StreamEvent:
					events++
					require.NotNil(t, sm.Event)
					assert.Equal(t, "b", sm.Event.HostIdentity)
				}
			}
		case <-deadline:
			t.Fatalf("got %d snapshots and %d events", snapshots, events)
		}
	}

	assert.GreaterOrEqual(t, conns.Load(), int64(2))

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestStreamClient_RejectedKeyIsPermanent(t *testing.T) {
	srv, _ := streamServer(t, "right")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + streamPath
	client := NewStreamClient(url, "wrong", logger.NewTestLogger())

	send, _ := collect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Run(ctx, send)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "API key")
}
