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

package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	err := Init(context.Background(), &Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, GetLogger().GetLevel())

	err = Init(context.Background(), &Config{Level: "info", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())
}

func TestInit_BadLevel(t *testing.T) {
	err := Init(context.Background(), &Config{Level: "loud"})
	require.Error(t, err)
}

func TestSetDebug(t *testing.T) {
	SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())

	SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, GetLogger().GetLevel())
}

func TestNew(t *testing.T) {
	l, err := New(context.Background(), &Config{Level: "error"})
	require.NoError(t, err)

	l.SetDebug(true)
	l.Debug().Msg("visible after SetDebug")
}

func TestWrap_WithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer

	l := Wrap(zerolog.New(&buf))

	c := l.WithComponent("registry")
	c.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"registry"`)

	buf.Reset()

	f := l.WithFields(map[string]interface{}{"host": "web-1"})
	f.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"host":"web-1"`)
}

func TestNewTestLogger(t *testing.T) {
	l := NewTestLogger()
	l.Error().Msg("discarded")
	assert.NotNil(t, l)
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG", "yes")

	config := DefaultConfig()

	assert.Equal(t, "debug", config.Level)
	assert.True(t, config.Debug)
	assert.Equal(t, "stdout", config.Output)
}
