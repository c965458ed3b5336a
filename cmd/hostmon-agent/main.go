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
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/hostmon/pkg/agent"
	"github.com/carverauto/hostmon/pkg/config"
	"github.com/carverauto/hostmon/pkg/lifecycle"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
	"github.com/carverauto/hostmon/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to agent config file")
	serverAddr := flag.String("server", "", "hostmon-server address (host:port)")
	interval := flag.Duration("interval", 0, "Time between status pushes")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath, *serverAddr, *interval)
	if err != nil {
		return err
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	agentLogger, err := lifecycle.CreateComponentLogger(ctx, "hostmon-agent", logConfig)
	if err != nil {
		return err
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	pusher := agent.NewPusher(cfg.ServerAddr,
		agent.NewSampler(agentLogger, cfg.Status),
		agent.WithLogger(agentLogger),
		agent.WithInterval(time.Duration(cfg.Interval)),
	)

	agentLogger.Info().
		Str("server", cfg.ServerAddr).
		Dur("interval", time.Duration(cfg.Interval)).
		Str("version", version.GetFullVersion()).
		Msg("Starting hostmon-agent")

	if err := pusher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	agentLogger.Info().Uint64("sent", pusher.Sent()).Msg("hostmon-agent stopped")

	return nil
}

// loadConfig reads the optional config file and lets flags override it.
func loadConfig(ctx context.Context, path, serverAddr string, interval time.Duration) (*models.AgentConfig, error) {
	var cfg models.AgentConfig

	if path != "" {
		cfgLoader := config.NewConfig(nil)
		if err := cfgLoader.Load(ctx, path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if serverAddr != "" {
		cfg.ServerAddr = serverAddr
	}

	if interval != 0 {
		cfg.Interval = models.Duration(interval)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}

	return &cfg, nil
}
