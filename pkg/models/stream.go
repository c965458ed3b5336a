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

import "time"

// Stream message types sent on the live websocket.
const (
	StreamSnapshot = "snapshot"
	StreamEvent    = "event"
)

// HostView is how the API presents a registry entry.
type HostView struct {
	RegistryEntry
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}

func NewHostView(e RegistryEntry) HostView {
	return HostView{RegistryEntry: e, MemoryUsagePercent: e.Latest.MemoryUsagePercent()}
}

// HostViews converts a snapshot. The result is never nil so it encodes as
// an empty JSON array.
func HostViews(entries []RegistryEntry) []HostView {
	views := make([]HostView, 0, len(entries))

	for _, e := range entries {
		views = append(views, NewHostView(e))
	}

	return views
}

// StreamMessage is one websocket frame. The first message on a stream is a
// snapshot with Hosts set; every later one is an event.
type StreamMessage struct {
	Type      string     `json:"type"`
	Hosts     []HostView `json:"hosts,omitempty"`
	Event     *Event     `json:"event,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}
