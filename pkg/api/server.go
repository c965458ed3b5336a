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

// Package api provides the HTTP query and streaming API for hostmon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	hmhttp "github.com/carverauto/hostmon/pkg/http"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
	"github.com/carverauto/hostmon/pkg/registry"
	"github.com/carverauto/hostmon/pkg/version"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// APIServer serves registry snapshots over HTTP and registry events over a
// websocket.
type APIServer struct {
	router   *mux.Router
	handler  http.Handler
	config   models.APIConfig
	hosts    registry.Reader
	events   EventSource
	listener ListenerStatus
	logger   logger.Logger
	started  time.Time

	mu     sync.Mutex
	srv    *http.Server
	cancel context.CancelFunc
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	ListenerState       string    `json:"listener_state,omitempty"`
	ListenAddr          string    `json:"listen_addr,omitempty"`
	ActiveSessions      int       `json:"active_sessions"`
	RejectedConnections uint64    `json:"rejected_connections"`
	Hosts               int       `json:"hosts"`
	Timestamp           time.Time `json:"timestamp"`
}

// NewAPIServer creates a new API server over the given registry.
func NewAPIServer(config models.APIConfig, hosts registry.Reader, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:  mux.NewRouter(),
		config:  config,
		hosts:   hosts,
		logger:  logger.NewTestLogger(),
		started: time.Now(),
	}

	for _, o := range options {
		o(s)
	}

	if s.config.PingInterval <= 0 {
		s.config.PingInterval = models.Duration(models.DefaultPingInterval)
	}

	s.setupRoutes()

	return s
}

func WithLogger(l logger.Logger) func(server *APIServer) {
	return func(server *APIServer) {
		server.logger = l
	}
}

// WithEventSource enables /api/stream.
func WithEventSource(src EventSource) func(server *APIServer) {
	return func(server *APIServer) {
		server.events = src
	}
}

// WithListener adds listener state to /api/status.
func WithListener(l ListenerStatus) func(server *APIServer) {
	return func(server *APIServer) {
		server.listener = l
	}
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/hosts", s.getHosts).Methods(http.MethodGet)
	api.HandleFunc("/hosts/{host:.+}", s.getHost).Methods(http.MethodGet)
	api.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	// wrapped outside the router so preflight requests, which match no
	// GET route, still get CORS headers
	auth := hmhttp.APIKeyMiddlewareWithOptions(hmhttp.APIKeyOptions{
		APIKey:          s.config.APIKey,
		ExcludePaths:    []string{"/health"},
		LogUnauthorized: true,
		Logger:          s.logger,
	})

	s.handler = hmhttp.CommonMiddleware(auth(s.router), s.config.AllowedOrigins, s.logger)
}

// Handler returns the fully wrapped HTTP handler.
func (s *APIServer) Handler() http.Handler {
	return s.handler
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       version.GetVersion(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}

	if err := s.encodeJSONResponse(w, resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode health response")
	}
}

func (s *APIServer) getHosts(w http.ResponseWriter, _ *http.Request) {
	if err := s.encodeJSONResponse(w, models.HostViews(s.hosts.Snapshot())); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode hosts response")
	}
}

func (s *APIServer) getHost(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["host"]

	entry, ok := s.hosts.Get(host)
	if !ok {
		writeError(w, "host not found", http.StatusNotFound)
		return
	}

	if err := s.encodeJSONResponse(w, models.NewHostView(entry)); err != nil {
		s.logger.Error().Err(err).Str("host", host).Msg("Failed to encode host response")
	}
}

func (s *APIServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	status := StatusResponse{
		Hosts:     s.hosts.Len(),
		Timestamp: time.Now(),
	}

	if s.listener != nil {
		status.ListenerState = s.listener.State().String()
		status.ActiveSessions = s.listener.ActiveSessions()
		status.RejectedConnections = s.listener.Rejected()

		if addr := s.listener.Addr(); addr != nil {
			status.ListenAddr = addr.String()
		}
	}

	if err := s.encodeJSONResponse(w, status); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode status response")
	}
}

func (*APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(data)
}

// Start listens on addr and serves until Shutdown.
func (s *APIServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a shutdown.
func (s *APIServer) Serve(ln net.Listener) error {
	base, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return base },
	}

	s.mu.Lock()
	s.srv = srv
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info().Str("listen_addr", ln.Addr().String()).Msg("API server listening")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()

		return err
	}

	return nil
}

// Shutdown ends open streams and gracefully stops the HTTP server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// websocket connections are hijacked, so srv.Shutdown does not see them
	cancel()

	return srv.Shutdown(ctx)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
