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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/hostmon/pkg/logger"
)

func TestRedact_ServerConfig(t *testing.T) {
	cfg := &ServerConfig{
		ListenAddr: ":5000",
		KeepAlive:  Duration(30 * time.Second),
		API: &APIConfig{
			Enabled:        true,
			APIKey:         "secret",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: &logger.Config{
			Level: "info",
			OTel:  logger.OTelConfig{Headers: map[string]string{"authorization": "Bearer x"}},
		},
	}

	out, err := Redact(cfg)
	require.NoError(t, err)

	assert.Equal(t, ":5000", out["listen_addr"])
	assert.Equal(t, Duration(30*time.Second), out["keep_alive"])
	assert.Nil(t, out["nats"])

	api, ok := out["api"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, api["enabled"])
	assert.NotContains(t, api, "api_key")
	assert.Equal(t, []interface{}{"http://localhost:3000"}, api["allowed_origins"])

	logging, ok := out["logging"].(map[string]interface{})
	require.True(t, ok)

	otel, ok := logging["otel"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, otel, "headers")
}

func TestRedact_EdgeCases(t *testing.T) {
	out, err := Redact(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	var nilCfg *ServerConfig

	out, err = Redact(nilCfg)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = Redact("plain string")
	require.ErrorIs(t, err, errNotStruct)

	type withSkipped struct {
		Shown  string `json:"shown"`
		Hidden string `json:"-"`
		Plain  int
		inner  string
	}

	out, err = Redact(withSkipped{Shown: "a", Hidden: "b", Plain: 3, inner: "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"shown": "a", "Plain": 3}, out)
}
