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
	"errors"
	"reflect"
	"strings"
)

var errNotStruct = errors.New("input must be a struct or pointer to struct")

// Redact converts a config struct into a JSON-shaped map with every field
// tagged `sensitive:"true"` left out, for logging effective configuration.
func Redact(input interface{}) (map[string]interface{}, error) {
	if input == nil {
		return map[string]interface{}{}, nil
	}

	switch out := redactValue(reflect.ValueOf(input)).(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return out, nil
	default:
		return nil, errNotStruct
	}
}

func redactValue(rv reflect.Value) interface{} {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return redactStruct(rv)
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = redactValue(rv.Index(i))
		}

		return out
	case reflect.Map:
		out := make(map[string]interface{}, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			if key, ok := iter.Key().Interface().(string); ok {
				out[key] = redactValue(iter.Value())
			}
		}

		return out
	case reflect.Invalid:
		return nil
	default:
		return rv.Interface()
	}
}

func redactStruct(rv reflect.Value) map[string]interface{} {
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)

		if !field.IsExported() || field.Tag.Get("sensitive") == "true" {
			continue
		}

		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")

		switch name {
		case "-":
			continue
		case "":
			name = field.Name
		}

		out[name] = redactValue(rv.Field(i))
	}

	return out
}
