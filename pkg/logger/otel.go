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
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
	errFailedToParseCACert  = errors.New("failed to parse CA certificate")
)

const (
	defaultServiceVersion   = "1.0.0"
	defaultLoggerScope      = "hostmon"
	maxAttributeValueLength = 4096
	truncatedKeysAttribute  = "otel.truncated_keys"
)

type OTelConfig struct {
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Headers      map[string]string `json:"headers" yaml:"headers" sensitive:"true"`
	ServiceName  string            `json:"service_name" yaml:"service_name"`
	BatchTimeout Duration          `json:"batch_timeout" yaml:"batch_timeout"`
	Insecure     bool              `json:"insecure" yaml:"insecure"`
	TLS          *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

func (c *OTelConfig) serviceName() string {
	if c.ServiceName == "" {
		return defaultServiceName
	}

	return c.ServiceName
}

// transportCredentials returns nil when the exporter should use its defaults.
func (c *OTelConfig) transportCredentials() (credentials.TransportCredentials, error) {
	if c.Insecure || c.TLS == nil {
		return nil, nil
	}

	tlsConfig, err := setupTLSConfig(c.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
	}

	return credentials.NewTLS(tlsConfig), nil
}

// OTelWriter is an io.Writer that turns zerolog JSON lines into OTel log
// records. The "component" field selects the instrumentation scope.
type OTelWriter struct {
	provider *sdklog.LoggerProvider
	ctx      context.Context

	mu      sync.Mutex
	loggers map[string]otellog.Logger
}

//nolint:gochecknoglobals // needed for proper OTel shutdown handling
var otelProvider *sdklog.LoggerProvider

func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(config.Endpoint)}

	creds, err := config.transportCredentials()
	if err != nil {
		return nil, err
	}

	switch {
	case config.Insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case creds != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(creds))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(ctx, config.serviceName(), defaultServiceVersion)
	if err != nil {
		return nil, err
	}

	batchTimeout := time.Duration(config.BatchTimeout)
	if batchTimeout == 0 {
		batchTimeout = 5 * time.Second
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(batchTimeout))),
	)

	otelProvider = provider
	global.SetLoggerProvider(provider)

	return &OTelWriter{
		provider: provider,
		ctx:      ctx,
		loggers:  make(map[string]otellog.Logger),
	}, nil
}

func (w *OTelWriter) Write(p []byte) (int, error) {
	if w.provider == nil {
		return len(p), nil
	}

	entry := make(map[string]interface{})
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	record := otellog.Record{}

	if ts, ok := entry["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(entry, "time")
		}
	}

	if level, ok := entry["level"].(string); ok {
		record.SetSeverity(mapZerologLevelToOTEL(level))
		record.SetSeverityText(level)
		delete(entry, "level")
	}

	if msg, ok := entry["message"].(string); ok {
		record.SetBody(otellog.StringValue(msg))
		delete(entry, "message")
	}

	scope := defaultLoggerScope
	if component, ok := entry["component"].(string); ok && component != "" {
		scope = component

		delete(entry, "component")
	}

	truncated := make([]string, 0)

	for key, value := range entry {
		formatted, cut := formatAttributeValue(value)
		if cut {
			truncated = append(truncated, key)
		}

		record.AddAttributes(otellog.String(key, formatted))
	}

	if len(truncated) > 0 {
		sort.Strings(truncated)
		record.AddAttributes(otellog.String(truncatedKeysAttribute, strings.Join(truncated, ",")))
	}

	w.scopeLogger(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scopeLogger(scope string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.loggers[scope]
	if !ok {
		l = w.provider.Logger(scope)
		w.loggers[scope] = l
	}

	return l
}

func formatAttributeValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "null", false
	case string:
		return truncateString(v, maxAttributeValueLength)
	case bool, float64:
		return fmt.Sprintf("%v", v), false
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return truncateString(fmt.Sprintf("%v", v), maxAttributeValueLength)
		}

		return truncateString(string(payload), maxAttributeValueLength)
	}
}

func truncateString(value string, limit int) (string, bool) {
	if len(value) <= limit {
		return value, false
	}

	cut := limit - 3
	if cut < 0 {
		cut = limit
	}

	truncated := value[:cut]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	if cut == limit {
		return truncated, true
	}

	return truncated + "...", true
}

func mapZerologLevelToOTEL(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

func newResource(ctx context.Context, name, version string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// ShutdownOTEL flushes the log and metric providers, returning the first error.
func ShutdownOTEL() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error

	if otelProvider != nil {
		if err := otelProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}

		otelProvider = nil
	}

	if err := shutdownMeterProvider(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := shutdownTracerProvider(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

func setupTLSConfig(tlsConfig *TLSConfig) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if tlsConfig.CAFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errFailedToParseCACert
		}

		config.RootCAs = pool
	}

	return config, nil
}
