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

package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/hostmon/pkg/events"
	hmhttp "github.com/carverauto/hostmon/pkg/http"
	"github.com/carverauto/hostmon/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	maxClientFrame = 512
)

// handleStream upgrades to a websocket, sends a registry snapshot and then
// every registry event until the client goes away or the server shuts
// down.
//
// The subscription is taken before the snapshot, so an event may describe
// a change the snapshot already reflects. Applying events in order on top
// of the snapshot still converges on the registry's state.
func (s *APIServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWebSocketOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	defer func() { _ = conn.Close() }()

	sub := s.events.Subscribe(events.WithName("ws:" + r.RemoteAddr))
	defer s.events.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pingInterval := time.Duration(s.config.PingInterval)

	go s.readPump(conn, 2*pingInterval, cancel)

	s.logger.Info().
		Str("remote_addr", r.RemoteAddr).
		Str("subscription_id", sub.ID()).
		Msg("WebSocket stream opened")

	sent, err := s.streamEvents(ctx, conn, sub, pingInterval)

	logEvt := s.logger.Info()
	if err != nil {
		logEvt = s.logger.Warn().Err(err)
	}

	logEvt.
		Str("remote_addr", r.RemoteAddr).
		Int("events_sent", sent).
		Uint64("events_dropped", sub.Dropped()).
		Msg("WebSocket stream closed")
}

func (s *APIServer) streamEvents(
	ctx context.Context, conn *websocket.Conn, sub *events.Subscription, pingInterval time.Duration,
) (int, error) {
	snapshot := models.StreamMessage{
		Type:      models.StreamSnapshot,
		Hosts:     models.HostViews(s.hosts.Snapshot()),
		Timestamp: time.Now(),
	}

	if err := writeMessage(conn, &snapshot); err != nil {
		return 0, err
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	sent := 0

	for {
		select {
		case <-ctx.Done():
			closeStream(conn, websocket.CloseGoingAway, "server shutting down")

			return sent, nil

		case evt, ok := <-sub.Events():
			if !ok {
				closeStream(conn, websocket.CloseGoingAway, "event source closed")

				return sent, nil
			}

			msg := models.StreamMessage{
				Type:      models.StreamEvent,
				Event:     &evt,
				Timestamp: time.Now(),
			}

			if err := writeMessage(conn, &msg); err != nil {
				return sent, err
			}

			sent++

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return sent, err
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed,
// and cancels the stream once the client stops answering pings.
func (*APIServer) readPump(conn *websocket.Conn, pongWait time.Duration, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg *models.StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return conn.WriteJSON(msg)
}

func closeStream(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

// checkWebSocketOrigin accepts requests without an Origin header, origins
// in the configured allow list, and otherwise only same-host origins.
func (s *APIServer) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.config.AllowedOrigins) > 0 {
		return hmhttp.OriginAllowed(origin, s.config.AllowedOrigins)
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Host, r.Host)
}
