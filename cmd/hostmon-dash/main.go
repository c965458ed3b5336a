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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/carverauto/hostmon/pkg/dashboard"
	"github.com/carverauto/hostmon/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	apiURL := flag.String("url", "http://localhost:8090", "hostmon-server API base URL")
	apiKey := flag.String("api-key", os.Getenv("HOSTMON_API_KEY"), "API key sent as X-API-Key")
	logFile := flag.String("log-file", "", "Write client logs to this file (discarded when empty)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The terminal belongs to the UI, so logs only go to a file.
	dashLogger := logger.Wrap(zerolog.Nop())

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = f.Close() }()

		dashLogger = logger.Wrap(zerolog.New(f).With().
			Timestamp().
			Str("component", "hostmon-dash").
			Logger())
	}

	return dashboard.Run(ctx, *apiURL, *apiKey, dashLogger)
}
