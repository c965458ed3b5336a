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

package dashboard

import (
	"fmt"
	"slices"
	"time"

	"github.com/carverauto/hostmon/pkg/models"
)

const defaultLogSize = 100

// HostState is the dashboard's copy of one host.
type HostState struct {
	Latest  models.StatusRecord
	Samples []models.Sample
}

func (h *HostState) lastSequence() uint64 {
	if len(h.Samples) == 0 {
		return 0
	}

	return h.Samples[len(h.Samples)-1].Sequence
}

// CPUHistory returns the CPU usage series, oldest first.
func (h *HostState) CPUHistory() []float64 {
	out := make([]float64, len(h.Samples))
	for i, s := range h.Samples {
		out[i] = s.CPUUsagePercent
	}

	return out
}

// MemoryHistory returns the memory usage series, oldest first.
func (h *HostState) MemoryHistory() []float64 {
	out := make([]float64, len(h.Samples))
	for i, s := range h.Samples {
		out[i] = s.MemoryUsagePercent
	}

	return out
}

// LogEntry is one line of the event pane.
type LogEntry struct {
	At      time.Time
	Host    string
	Added   bool
	Message string
}

// State mirrors the server registry from a snapshot plus the events that
// follow it.
type State struct {
	hosts       map[string]*HostState
	log         []LogEntry
	historySize int
	logSize     int
	synced      bool
}

func NewState(historySize int) *State {
	if historySize <= 0 {
		historySize = models.DefaultHistorySize
	}

	return &State{
		hosts:       make(map[string]*HostState),
		historySize: historySize,
		logSize:     defaultLogSize,
	}
}

// ApplySnapshot replaces the local view. After the first snapshot, for
// instance on reconnect, hosts that appeared or vanished meanwhile are
// logged.
func (s *State) ApplySnapshot(hosts []models.HostView, at time.Time) {
	next := make(map[string]*HostState, len(hosts))

	for _, h := range hosts {
		samples := h.Samples
		if len(samples) > s.historySize {
			samples = samples[len(samples)-s.historySize:]
		}

		next[h.Latest.HostIdentity] = &HostState{
			Latest:  h.Latest,
			Samples: slices.Clone(samples),
		}
	}

	if s.synced {
		for host, st := range next {
			if _, ok := s.hosts[host]; !ok {
				s.appendLog(addedEntry(st.Latest, at))
			}
		}

		for host := range s.hosts {
			if _, ok := next[host]; !ok {
				s.appendLog(removedEntry(host, at))
			}
		}
	} else {
		s.appendLog(LogEntry{At: at, Message: fmt.Sprintf("stream connected, %d hosts", len(next))})
	}

	s.hosts = next
	s.synced = true
}

// ApplyEvent folds one registry event into the view. Events already
// reflected in the snapshot are recognised by their sequence number.
func (s *State) ApplyEvent(evt models.Event) {
	switch evt.Kind {
	case models.EventUpdated:
		if evt.Record == nil {
			return
		}

		st, ok := s.hosts[evt.HostIdentity]
		if !ok {
			st = &HostState{}
			s.hosts[evt.HostIdentity] = st
			s.appendLog(addedEntry(*evt.Record, evt.At))
		}

		if evt.Sequence != 0 && evt.Sequence <= st.lastSequence() {
			return
		}

		st.Latest = *evt.Record
		st.Samples = append(st.Samples, models.Sample{
			Sequence:           evt.Sequence,
			CPUUsagePercent:    evt.Record.CPUUsagePercent,
			MemoryUsagePercent: evt.Record.MemoryUsagePercent(),
		})

		if over := len(st.Samples) - s.historySize; over > 0 {
			st.Samples = slices.Delete(st.Samples, 0, over)
		}

	case models.EventRemoved:
		if _, ok := s.hosts[evt.HostIdentity]; !ok {
			return
		}

		delete(s.hosts, evt.HostIdentity)
		s.appendLog(removedEntry(evt.HostIdentity, evt.At))
	}
}

func addedEntry(rec models.StatusRecord, at time.Time) LogEntry {
	msg := "connected"
	if rec.OSDescription != "" {
		msg = "connected (" + rec.OSDescription + ")"
	}

	return LogEntry{At: at, Host: rec.HostIdentity, Added: true, Message: msg}
}

func removedEntry(host string, at time.Time) LogEntry {
	return LogEntry{At: at, Host: host, Message: "disconnected"}
}

func (s *State) appendLog(e LogEntry) {
	s.log = append(s.log, e)

	if over := len(s.log) - s.logSize; over > 0 {
		s.log = slices.Delete(s.log, 0, over)
	}
}

// Hosts returns the hosts sorted by identity.
func (s *State) Hosts() []string {
	hosts := make([]string, 0, len(s.hosts))
	for h := range s.hosts {
		hosts = append(hosts, h)
	}

	slices.Sort(hosts)

	return hosts
}

func (s *State) Host(host string) (*HostState, bool) {
	st, ok := s.hosts[host]
	return st, ok
}

func (s *State) Len() int { return len(s.hosts) }

// Log returns up to n most recent entries, oldest first.
func (s *State) Log(n int) []LogEntry {
	if n <= 0 || n > len(s.log) {
		n = len(s.log)
	}

	return slices.Clone(s.log[len(s.log)-n:])
}
