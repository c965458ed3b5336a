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

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ConfigFileEnv names the file read when no path is given.
const ConfigFileEnv = "HOSTMON_CONFIG_FILE"

var (
	errConfigPathRequired = errors.New("no config path given and " + ConfigFileEnv + " is unset")
	errTrailingData       = errors.New("unexpected data after the JSON document")
)

// FileConfigLoader loads one JSON document from a local file. Keys that do
// not match a field in dst are rejected.
type FileConfigLoader struct{}

func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}

	if path == "" {
		return errConfigPathRequired
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	if err := decodeStrict(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	return nil
}

func decodeStrict(data []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}

	return nil
}
