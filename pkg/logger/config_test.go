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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_HostmonPrefixWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("HOSTMON_LOG_LEVEL", "debug")
	t.Setenv("HOSTMON_LOG_OUTPUT", "stderr")

	config := DefaultConfig()

	assert.Equal(t, "debug", config.Level)
	assert.Equal(t, "stderr", config.Output)
}

func TestDefaultOTelConfig_GenericFallback(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_HEADERS", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer t,broken")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT", "2s")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "on")

	config := DefaultOTelConfig()

	assert.Equal(t, "collector:4317", config.Endpoint)
	assert.Equal(t, map[string]string{"authorization": "Bearer t"}, config.Headers)
	assert.Equal(t, Duration(2*time.Second), config.BatchTimeout)
	assert.True(t, config.Insecure)
}

func TestDefaultOTelConfig_BadTimeoutKeepsDefault(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT", "soon")

	assert.Equal(t, Duration(defaultBatchTimeout), DefaultOTelConfig().BatchTimeout)
}

func TestEnvBool(t *testing.T) {
	tests := map[string]bool{
		"":      false,
		"1":     true,
		"TRUE":  true,
		"yes":   true,
		"On":    true,
		"0":     false,
		"off":   false,
		"maybe": false,
	}

	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("HOSTMON_TEST_FLAG", "")
			t.Setenv("TEST_FLAG", raw)

			assert.Equal(t, want, envBool("TEST_FLAG", false))
		})
	}
}
