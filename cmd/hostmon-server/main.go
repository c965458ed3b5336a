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
	"time"

	"github.com/carverauto/hostmon/pkg/api"
	"github.com/carverauto/hostmon/pkg/config"
	"github.com/carverauto/hostmon/pkg/events"
	"github.com/carverauto/hostmon/pkg/lifecycle"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/metrics"
	"github.com/carverauto/hostmon/pkg/models"
	"github.com/carverauto/hostmon/pkg/natsutil"
	"github.com/carverauto/hostmon/pkg/registry"
	"github.com/carverauto/hostmon/pkg/server"
	"github.com/carverauto/hostmon/pkg/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/hostmon/server.json", "Path to server config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg models.ServerConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "hostmon-server", logConfig)
	if err != nil {
		return err
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	if safe, err := models.Redact(&cfg); err == nil {
		mainLogger.Info().
			Str("version", version.GetFullVersion()).
			Interface("config", safe).
			Msg("Starting hostmon-server")
	}

	if err := lifecycle.InitializeTelemetry(ctx, "hostmon-server", logConfig, mainLogger); err != nil {
		return err
	}

	recorder, err := metrics.NewOTelRecorder(nil)
	if err != nil {
		return err
	}

	broker := events.NewBroker(
		events.WithLogger(mainLogger),
		events.WithDefaultBufferSize(cfg.SubscriberSize),
	)
	defer broker.Close()

	reg := registry.New(
		registry.WithHistorySize(cfg.HistorySize),
		registry.WithPublisher(broker),
		registry.WithLogger(mainLogger),
	)

	if _, err := recorder.ObserveRegistry(reg.Len, broker.Dropped); err != nil {
		mainLogger.Warn().Err(err).Msg("Failed to register registry gauges")
	}

	go logEvents(ctx, broker, mainLogger)

	if cfg.NATS != nil && cfg.NATS.Enabled {
		closeNATS, err := startNATSForwarder(ctx, cfg.NATS, broker, mainLogger)
		if err != nil {
			return err
		}

		defer closeNATS()
	}

	listener := server.New(reg,
		server.WithConfig(&cfg),
		server.WithLogger(mainLogger),
		server.WithRecorder(recorder),
	)

	if err := listener.Start(ctx, cfg.ListenAddr); err != nil {
		return err
	}

	var apiServer *api.APIServer

	apiErrs := make(chan error, 1)

	if cfg.API != nil && cfg.API.Enabled {
		apiServer = api.NewAPIServer(*cfg.API, reg,
			api.WithLogger(mainLogger),
			api.WithEventSource(broker),
			api.WithListener(listener),
		)

		go func() {
			apiErrs <- apiServer.Start(cfg.API.ListenAddr)
		}()
	}

	var runErr error

	select {
	case <-ctx.Done():
		mainLogger.Info().Msg("Shutdown signal received")
	case runErr = <-apiErrs:
		if runErr != nil {
			mainLogger.Error().Err(runErr).Msg("API server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.Warn().Err(err).Msg("API server shutdown incomplete")
		}
	}

	if cfg.CloseSessionsOnShutdown {
		if err := listener.Shutdown(shutdownCtx); err != nil {
			mainLogger.Warn().Err(err).Msg("Sessions did not finish before shutdown deadline")
		}
	} else {
		listener.Stop()
	}

	mainLogger.Info().Int("hosts", reg.Len()).Msg("hostmon-server stopped")

	return runErr
}

// logEvents writes one line per registry change until ctx is done or the
// broker closes.
func logEvents(ctx context.Context, broker *events.Broker, log logger.Logger) {
	sub := broker.Subscribe(events.WithName("log"))
	defer broker.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}

			switch evt.Kind {
			case models.EventUpdated:
				log.Debug().
					Str("host", evt.HostIdentity).
					Uint64("sequence", evt.Sequence).
					Msg("Host updated")
			case models.EventRemoved:
				log.Info().Str("host", evt.HostIdentity).Msg("Host removed")
			}
		}
	}
}

func startNATSForwarder(
	ctx context.Context, cfg *models.NATSConfig, broker *events.Broker, log logger.Logger) (func(), error) {
	nc, err := natsutil.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	publisher, err := natsutil.CreateEventPublisher(ctx, nc, cfg)
	if err != nil {
		nc.Close()

		return nil, err
	}

	forwarder := natsutil.NewForwarder(publisher, log, time.Duration(cfg.PublishTimeout))
	sub := broker.Subscribe(events.WithName("nats"))

	fwdCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		forwarder.Run(fwdCtx, sub)
	}()

	log.Info().
		Str("url", cfg.URL).
		Str("stream", cfg.StreamName).
		Strs("subjects", publisher.Subjects()).
		Msg("Publishing host events to NATS")

	return func() {
		cancel()
		<-done
		broker.Unsubscribe(sub)

		if err := nc.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection")
		}

		log.Info().
			Uint64("published", forwarder.Published()).
			Uint64("failed", forwarder.Failed()).
			Msg("NATS forwarder stopped")
	}, nil
}
