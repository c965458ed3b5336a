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

// Package http pkg/http/middleware.go
package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/carverauto/hostmon/pkg/logger"
)

// CommonMiddleware logs each request and applies CORS headers for the
// allowed origins. "*" allows any origin.
func CommonMiddleware(next http.Handler, allowedOrigins []string, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().
			Str("remote_addr", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("HTTP request")

		if origin := r.Header.Get("Origin"); origin != "" && OriginAllowed(origin, allowedOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// OriginAllowed reports whether origin matches one of allowed.
func OriginAllowed(origin string, allowed []string) bool {
	return slices.ContainsFunc(allowed, func(a string) bool {
		return a == "*" || strings.EqualFold(a, origin)
	})
}

// APIKeyOptions configures APIKeyMiddlewareWithOptions.
type APIKeyOptions struct {
	APIKey          string
	ExcludePaths    []string
	LogUnauthorized bool
	Logger          logger.Logger
}

// APIKeyMiddlewareWithOptions rejects requests whose X-API-Key header (or
// api_key query parameter) does not match opts.APIKey. An empty key
// disables the check.
func APIKeyMiddlewareWithOptions(opts APIKeyOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if opts.APIKey == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(opts.ExcludePaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			requestKey := r.Header.Get("X-API-Key")
			if requestKey == "" {
				requestKey = r.URL.Query().Get("api_key")
			}

			if requestKey != opts.APIKey {
				if opts.LogUnauthorized && opts.Logger != nil {
					opts.Logger.Warn().
						Str("remote_addr", r.RemoteAddr).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("Unauthorized API access attempt")
				}

				http.Error(w, "Unauthorized", http.StatusUnauthorized)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
