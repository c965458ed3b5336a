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

// Package config loads hostmon configuration from a JSON file or from
// environment variables, selected by CONFIG_SOURCE.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/carverauto/hostmon/pkg/logger"
)

var errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix is used when CONFIG_ENV_PREFIX is unset.
	DefaultEnvPrefix = "HOSTMON_"
)

type Config struct {
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig returns a Config that reads files unless CONFIG_SOURCE=env.
// A nil logger discards loader output.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		defaultLoader: &FileConfigLoader{},
		logger:        log,
	}
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// Load fills cfg from the configured source without validating it, for
// callers that overlay flags before validation.
func (c *Config) Load(ctx context.Context, path string, cfg interface{}) error {
	loader, err := c.loaderForSource()
	if err != nil {
		return err
	}

	return loader.Load(ctx, path, cfg)
}

// LoadAndValidate loads cfg from the configured source and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.Load(ctx, path, cfg); err != nil {
		return err
	}

	return ValidateConfig(cfg)
}

func (c *Config) loaderForSource() (ConfigLoader, error) {
	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	switch source {
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = DefaultEnvPrefix
		}

		return NewEnvConfigLoader(c.logger, prefix), nil
	case configSourceFile, "":
		return c.defaultLoader, nil
	default:
		return nil, fmt.Errorf("%w: %s (expected '%s' or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}
}
