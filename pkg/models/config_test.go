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

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfigValidateDefaults(t *testing.T) {
	t.Parallel()

	var cfg ServerConfig

	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultMaxSessions, cfg.MaxSessions)
	assert.Equal(t, OverflowReject, cfg.OverflowPolicy)
	assert.Equal(t, DefaultMaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, Duration(DefaultKeepAlive), cfg.KeepAlive)
	assert.Equal(t, DefaultHistorySize, cfg.HistorySize)
	assert.Equal(t, DefaultSubscriberSize, cfg.SubscriberSize)
}

func TestServerConfigValidateErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg  ServerConfig
		want error
	}{
		"blank listen addr": {cfg: ServerConfig{ListenAddr: "  "}, want: errListenAddrRequired},
		"negative sessions": {cfg: ServerConfig{MaxSessions: -1}, want: errInvalidMaxSessions},
		"bad overflow":      {cfg: ServerConfig{OverflowPolicy: "drop"}, want: errInvalidOverflow},
		"negative frame":    {cfg: ServerConfig{MaxFrameSize: -5}, want: errInvalidMaxFrameSize},
		"negative history":  {cfg: ServerConfig{HistorySize: -1}, want: errInvalidHistorySize},
		"nats without url":  {cfg: ServerConfig{NATS: &NATSConfig{Enabled: true}}, want: errNATSURLRequired},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestServerConfigValidateSections(t *testing.T) {
	t.Parallel()

	cfg := ServerConfig{
		API:  &APIConfig{Enabled: true},
		NATS: &NATSConfig{Enabled: true, URL: "nats://localhost:4222"},
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAPIListenAddr, cfg.API.ListenAddr)
	assert.Equal(t, DefaultNATSStream, cfg.NATS.StreamName)
	assert.Equal(t, DefaultSubjectPrefix, cfg.NATS.SubjectPrefix)

	disabled := NATSConfig{}
	require.NoError(t, disabled.Validate())
}

func TestAgentConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := AgentConfig{ServerAddr: "collector:5000"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Duration(DefaultPushInterval), cfg.Interval)
	assert.Equal(t, "Connected", cfg.Status)

	require.ErrorIs(t, (&AgentConfig{}).Validate(), errServerAddrRequired)
	require.ErrorIs(t, (&AgentConfig{ServerAddr: "x", Interval: -1}).Validate(), errInvalidInterval)
}
