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
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	OTel           *OTelConfig // spans are only exported when set and enabled
}

//nolint:gochecknoglobals // global state is required for coordinated shutdown
var (
	tracerProvider *sdktrace.TracerProvider
	tracerMu       sync.Mutex
)

// InitializeTracing installs the global TracerProvider. Without an enabled
// OTel config spans are still created, so trace ids show up in logs, but
// nothing is exported.
func InitializeTracing(ctx context.Context, config TracingConfig) (*sdktrace.TracerProvider, error) {
	tracerMu.Lock()
	defer tracerMu.Unlock()

	if tracerProvider != nil {
		return tracerProvider, nil
	}

	name := config.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	version := config.ServiceVersion
	if version == "" {
		version = defaultServiceVersion
	}

	res, err := newResource(ctx, name, version)
	if err != nil {
		return nil, err
	}

	tpOptions := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if config.OTel != nil && config.OTel.Enabled && config.OTel.Endpoint != "" {
		exporter, err := createTraceExporter(ctx, config.OTel)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		tpOptions = append(tpOptions, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOptions...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracerProvider = tp

	return tp, nil
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func createTraceExporter(ctx context.Context, config *OTelConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}

	creds, err := config.transportCredentials()
	if err != nil {
		return nil, err
	}

	switch {
	case config.Insecure:
		opts = append(opts, otlptracegrpc.WithInsecure())
	case creds != nil:
		opts = append(opts, otlptracegrpc.WithTLSCredentials(creds))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}

func shutdownTracerProvider(ctx context.Context) error {
	tracerMu.Lock()
	defer tracerMu.Unlock()

	if tracerProvider == nil {
		return nil
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		return err
	}

	tracerProvider = nil

	return nil
}
