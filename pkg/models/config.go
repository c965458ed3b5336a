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
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/hostmon/pkg/logger"
)

var (
	errUnknownEventKind    = errors.New("unknown event kind")
	errListenAddrRequired  = errors.New("listen_addr is required")
	errInvalidMaxSessions  = errors.New("max_sessions must be positive")
	errInvalidOverflow     = errors.New("overflow_policy must be \"reject\" or \"queue\"")
	errInvalidHistorySize  = errors.New("history_size must be positive")
	errServerAddrRequired  = errors.New("server_addr is required")
	errInvalidInterval     = errors.New("interval must be positive")
	errNATSURLRequired     = errors.New("nats url is required")
	errInvalidMaxFrameSize = errors.New("max_frame_size must be positive")
)

const (
	DefaultListenAddr     = ":5000"
	DefaultAPIListenAddr  = ":8090"
	DefaultMaxSessions    = 1024
	DefaultMaxFrameSize   = 64 * 1024
	DefaultSubscriberSize = 256
	DefaultKeepAlive      = 30 * time.Second
	DefaultPushInterval   = time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultNATSStream     = "hostmon"
	DefaultSubjectPrefix  = "hostmon.hosts"
	DefaultPublishTimeout = 5 * time.Second
)

// Duration accepts "5s" style strings or integer nanoseconds in JSON.
type Duration = logger.Duration

// OverflowPolicy decides what the listener does with a connection that
// arrives while every session slot is taken.
type OverflowPolicy string

const (
	// OverflowReject closes the new connection immediately.
	OverflowReject OverflowPolicy = "reject"
	// OverflowQueue stops accepting until a slot frees up; pending
	// connections wait in the kernel backlog.
	OverflowQueue OverflowPolicy = "queue"
)

// ServerConfig is the hostmon-server configuration document.
type ServerConfig struct {
	ListenAddr     string         `json:"listen_addr"`
	MaxSessions    int            `json:"max_sessions"`
	OverflowPolicy OverflowPolicy `json:"overflow_policy"`
	MaxFrameSize   int            `json:"max_frame_size"`
	KeepAlive      Duration       `json:"keep_alive"`
	HistorySize    int            `json:"history_size"`
	SubscriberSize int            `json:"subscriber_buffer"`
	// CloseSessionsOnShutdown closes live agent connections when the
	// process is asked to exit instead of leaving them to drain.
	CloseSessionsOnShutdown bool `json:"close_sessions_on_shutdown"`

	API     *APIConfig     `json:"api,omitempty"`
	NATS    *NATSConfig    `json:"nats,omitempty"`
	Logging *logger.Config `json:"logging,omitempty"`
}

// Validate fills defaults and rejects values the server cannot run with.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if strings.TrimSpace(c.ListenAddr) == "" {
		return errListenAddrRequired
	}

	if c.MaxSessions == 0 {
		c.MaxSessions = DefaultMaxSessions
	}

	if c.MaxSessions < 0 {
		return errInvalidMaxSessions
	}

	switch c.OverflowPolicy {
	case "":
		c.OverflowPolicy = OverflowReject
	case OverflowReject, OverflowQueue:
	default:
		return fmt.Errorf("%w: %q", errInvalidOverflow, c.OverflowPolicy)
	}

	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}

	if c.MaxFrameSize < 0 {
		return errInvalidMaxFrameSize
	}

	if c.KeepAlive == 0 {
		c.KeepAlive = Duration(DefaultKeepAlive)
	}

	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}

	if c.HistorySize < 0 {
		return errInvalidHistorySize
	}

	if c.SubscriberSize <= 0 {
		c.SubscriberSize = DefaultSubscriberSize
	}

	if c.API != nil {
		c.API.applyDefaults()
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// APIConfig configures the HTTP query and streaming API.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	ListenAddr     string   `json:"listen_addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	// APIKey, when set, is required in the X-API-Key header (or the
	// api_key query parameter) on everything except /health.
	APIKey       string   `json:"api_key,omitempty" sensitive:"true"`
	PingInterval Duration `json:"ping_interval,omitempty"`
}

func (c *APIConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultAPIListenAddr
	}

	if c.PingInterval <= 0 {
		c.PingInterval = Duration(DefaultPingInterval)
	}
}

// NATSConfig configures publication of registry events to NATS JetStream.
type NATSConfig struct {
	Enabled        bool            `json:"enabled"`
	URL            string          `json:"url"`
	StreamName     string          `json:"stream_name"`
	SubjectPrefix  string          `json:"subject_prefix"`
	Domain         string          `json:"domain,omitempty"`
	PublishTimeout Duration        `json:"publish_timeout,omitempty"`
	Security       *SecurityConfig `json:"security,omitempty"`
}

// Validate ensures the NATS configuration is valid
func (c *NATSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return errNATSURLRequired
	}

	if c.StreamName == "" {
		c.StreamName = DefaultNATSStream
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = Duration(DefaultPublishTimeout)
	}

	return nil
}

// AgentConfig is the hostmon-agent configuration document.
type AgentConfig struct {
	ServerAddr string         `json:"server_addr"`
	Interval   Duration       `json:"interval"`
	Status     string         `json:"status"`
	Logging    *logger.Config `json:"logging,omitempty"`
}

// Validate fills defaults and rejects values the agent cannot run with.
func (c *AgentConfig) Validate() error {
	if strings.TrimSpace(c.ServerAddr) == "" {
		return errServerAddrRequired
	}

	if c.Interval == 0 {
		c.Interval = Duration(DefaultPushInterval)
	}

	if c.Interval < 0 {
		return errInvalidInterval
	}

	if c.Status == "" {
		c.Status = "Connected"
	}

	return nil
}
