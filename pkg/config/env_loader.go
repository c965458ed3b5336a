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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/hostmon/pkg/logger"
)

var (
	ErrDstMustBeNonNilPointer   = errors.New("dst must be a non-nil pointer")
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

//nolint:gochecknoglobals // reflect types compared per field
var (
	durationType     = reflect.TypeOf(time.Duration(0))
	confDurationType = reflect.TypeOf(logger.Duration(0))
)

// EnvConfigLoader maps environment variables onto json-tagged struct fields.
// Nested structs join tags with underscores, so HOSTMON_API_LISTEN_ADDR sets
// cfg.API.ListenAddr. <prefix>CONFIG_JSON, when present, replaces the whole
// walk.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{logger: log, prefix: prefix}
}

func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if raw := os.Getenv(e.prefix + "CONFIG_JSON"); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.logger.Info().Msg("Loaded configuration from CONFIG_JSON environment variable")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	n := e.loadStruct(v, e.prefix)

	e.logger.Debug().Int("fields", n).Msg("Loaded configuration from environment variables")

	return nil
}

// loadStruct returns how many fields were set below v.
func (e *EnvConfigLoader) loadStruct(v reflect.Value, prefix string) int {
	t := v.Type()
	set := 0

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		envName := prefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		n, err := e.loadField(field, envName)
		if err != nil {
			e.logger.Warn().Err(err).Str("env", envName).Msg("Ignoring invalid environment value")

			continue
		}

		set += n
	}

	return set
}

func (e *EnvConfigLoader) loadField(field reflect.Value, envName string) (int, error) {
	switch {
	case field.Kind() == reflect.Struct:
		return e.loadStruct(field, envName+"_"), nil
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		// only allocate when something underneath is set
		tmp := reflect.New(field.Type().Elem())
		if !field.IsNil() {
			tmp.Elem().Set(field.Elem())
		}

		n := e.loadStruct(tmp.Elem(), envName+"_")
		if n > 0 {
			field.Set(tmp)
		}

		return n, nil
	}

	value, ok := os.LookupEnv(envName)
	if !ok || value == "" {
		return 0, nil
	}

	if err := setScalar(field, value); err != nil {
		return 0, fmt.Errorf("%s: %w", envName, err)
	}

	return 1, nil
}

func setScalar(field reflect.Value, value string) error {
	if field.Type() == durationType || field.Type() == confDurationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}

		field.SetInt(int64(d))

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}

		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))

			for i, p := range parts {
				slice.Index(i).SetString(strings.TrimSpace(p))
			}

			field.Set(slice)

			return nil
		}

		return json.Unmarshal([]byte(value), field.Addr().Interface())
	default:
		return json.Unmarshal([]byte(value), field.Addr().Interface())
	}

	return nil
}
