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
	"encoding/json"
	"fmt"
	"time"
)

// EventKind identifies what happened to a registry entry.
type EventKind int

const (
	EventUpdated EventKind = iota + 1
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MarshalJSON encodes the kind as its name.
func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (k *EventKind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}

	switch name {
	case "updated":
		*k = EventUpdated
	case "removed":
		*k = EventRemoved
	default:
		return fmt.Errorf("%w: %q", errUnknownEventKind, name)
	}

	return nil
}

// Event is a registry change notification. Record is set for EventUpdated
// and nil for EventRemoved.
type Event struct {
	Kind         EventKind     `json:"kind"`
	HostIdentity string        `json:"host_identity"`
	Record       *StatusRecord `json:"record,omitempty"`
	Sequence     uint64        `json:"sequence,omitempty"`
	At           time.Time     `json:"at"`
}

// UpdatedEvent builds the event published when a record is stored.
func UpdatedEvent(rec StatusRecord, seq uint64, at time.Time) Event {
	return Event{
		Kind:         EventUpdated,
		HostIdentity: rec.HostIdentity,
		Record:       &rec,
		Sequence:     seq,
		At:           at,
	}
}

// RemovedEvent builds the event published when a host leaves the registry.
func RemovedEvent(host string, at time.Time) Event {
	return Event{
		Kind:         EventRemoved,
		HostIdentity: host,
		At:           at,
	}
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}
