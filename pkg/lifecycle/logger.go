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

// Package lifecycle owns process-level setup shared by the hostmon binaries:
// component loggers, OTel pipelines and their shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/hostmon/pkg/logger"
)

// InitializeLogger configures the package-global logger.
func InitializeLogger(ctx context.Context, config *logger.Config) error {
	if err := logger.Init(ctx, config); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// CreateComponentLogger returns an injectable logger whose lines carry
// component=<component>.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	base, err := logger.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s logger: %w", component, err)
	}

	return logger.Wrap(base.WithComponent(component)), nil
}

// InitializeTelemetry starts the metrics and tracing pipelines for service.
// Metrics are skipped when OTel export is disabled; tracing always installs
// a provider so spans carry ids.
func InitializeTelemetry(ctx context.Context, service string, config *logger.Config, log logger.Logger) error {
	var otelCfg *logger.OTelConfig
	if config != nil {
		otelCfg = &config.OTel
	}

	_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{ServiceName: service, OTel: otelCfg})

	switch {
	case errors.Is(err, logger.ErrOTelMetricsDisabled):
		log.Debug().Msg("OTel metrics export disabled")
	case err != nil:
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if _, err := logger.InitializeTracing(ctx, logger.TracingConfig{ServiceName: service, OTel: otelCfg}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return nil
}

// ShutdownLogger flushes pending logs, metrics and spans.
func ShutdownLogger() error {
	return logger.Shutdown()
}
