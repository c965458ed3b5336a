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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
	"github.com/carverauto/hostmon/pkg/version"
)

const streamPath = "/api/stream"

var errUnsupportedScheme = errors.New("unsupported URL scheme")

// StreamURL turns an API base URL such as http://host:8090 into the
// websocket stream URL. ws:// and wss:// URLs with a path are kept as is.
func StreamURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
	}

	if strings.Trim(u.Path, "/") == "" {
		u.Path = streamPath
	}

	return u.String(), nil
}

// StreamClient follows the API's event stream and hands every message to
// the program, reconnecting with backoff.
type StreamClient struct {
	url        string
	header     http.Header
	dialer     *websocket.Dialer
	logger     logger.Logger
	newBackOff func() backoff.BackOff
}

func NewStreamClient(streamURL, apiKey string, log logger.Logger) *StreamClient {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent("dash"))

	if apiKey != "" {
		header.Set("X-API-Key", apiKey)
	}

	return &StreamClient{
		url:    streamURL,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: log,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxInterval = 10 * time.Second

			return bo
		},
	}
}

// Run streams until ctx is done and returns ctx.Err().
func (c *StreamClient) Run(ctx context.Context, send func(tea.Msg)) error {
	for {
		conn, err := c.connect(ctx, send)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		send(StreamStateMsg{Connected: true})

		err = c.read(ctx, conn, send)

		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn().Err(err).Str("url", c.url).Msg("Stream disconnected")
		send(StreamStateMsg{Err: err})
	}
}

func (c *StreamClient) connect(ctx context.Context, send func(tea.Msg)) (*websocket.Conn, error) {
	operation := func() (*websocket.Conn, error) {
		conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if err != nil && resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, backoff.Permanent(fmt.Errorf("stream rejected the API key: %w", err))
		}

		return conn, err
	}

	notify := func(err error, next time.Duration) {
		c.logger.Warn().Err(err).Dur("retry_in", next).Str("url", c.url).Msg("Failed to connect to stream")
		send(StreamStateMsg{Err: err})
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
}

func (*StreamClient) read(ctx context.Context, conn *websocket.Conn, send func(tea.Msg)) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg models.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		send(msg)
	}
}
