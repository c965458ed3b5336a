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

package api

import (
	"net"

	"github.com/carverauto/hostmon/pkg/events"
	"github.com/carverauto/hostmon/pkg/server"
)

// ListenerStatus is the part of the agent listener the status endpoint
// reports on.
type ListenerStatus interface {
	State() server.State
	Addr() net.Addr
	ActiveSessions() int
	Rejected() uint64
}

// EventSource hands out registry event subscriptions for the live stream.
type EventSource interface {
	Subscribe(opts ...events.SubscribeOption) *events.Subscription
	Unsubscribe(sub *events.Subscription)
}

var (
	_ ListenerStatus = (*server.Listener)(nil)
	_ EventSource    = (*events.Broker)(nil)
)
