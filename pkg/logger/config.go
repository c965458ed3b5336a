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
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultServiceName  = "hostmon"
	defaultBatchTimeout = 5 * time.Second

	// envPrefix scopes a variable to hostmon: HOSTMON_LOG_LEVEL beats
	// LOG_LEVEL when both are set.
	envPrefix = "HOSTMON_"
)

// DefaultConfig builds a Config from LOG_LEVEL, DEBUG, LOG_OUTPUT and
// LOG_TIME_FORMAT, each overridable with a HOSTMON_ prefix.
func DefaultConfig() *Config {
	return &Config{
		Level:      envString("LOG_LEVEL", "info"),
		Debug:      envBool("DEBUG", false),
		Output:     envString("LOG_OUTPUT", "stdout"),
		TimeFormat: envString("LOG_TIME_FORMAT", ""),
		OTel:       DefaultOTelConfig(),
	}
}

// DefaultOTelConfig reads the OTEL_EXPORTER_OTLP_LOGS_* variables, falling
// back to the signal-agnostic OTEL_EXPORTER_OTLP_* ones for the endpoint,
// headers and timeout.
func DefaultOTelConfig() OTelConfig {
	batchTimeout := defaultBatchTimeout

	if raw := otlpEnv("TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			batchTimeout = d
		}
	}

	return OTelConfig{
		Enabled:      envBool("OTEL_LOGS_ENABLED", false),
		Endpoint:     otlpEnv("ENDPOINT"),
		Headers:      parseHeaders(otlpEnv("HEADERS")),
		ServiceName:  envString("OTEL_SERVICE_NAME", defaultServiceName),
		BatchTimeout: Duration(batchTimeout),
		Insecure:     envBool("OTEL_EXPORTER_OTLP_LOGS_INSECURE", envBool("OTEL_EXPORTER_OTLP_INSECURE", false)),
	}
}

func otlpEnv(suffix string) string {
	if v := envString("OTEL_EXPORTER_OTLP_LOGS_"+suffix, ""); v != "" {
		return v
	}

	return envString("OTEL_EXPORTER_OTLP_"+suffix, "")
}

// parseHeaders reads "k1=v1,k2=v2". Pairs without '=' are ignored.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}

		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return headers
}

func envString(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}

	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(envString(key, "")))

	switch raw {
	case "":
		return fallback
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}
