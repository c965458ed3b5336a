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

// Package registry holds the last known status of every connected host.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/carverauto/hostmon/pkg/events"
	"github.com/carverauto/hostmon/pkg/logger"
	"github.com/carverauto/hostmon/pkg/models"
)

type hostState struct {
	latest  models.StatusRecord
	history *history
}

// HostRegistry maps host identity to its latest record and recent samples.
//
// A single mutex guards the map and the sequence counter. Events are handed
// to the publisher after that mutex is released; pubMu is taken before the
// release so every subscriber sees changes in the order they were applied.
type HostRegistry struct {
	logger      logger.Logger
	publisher   events.Publisher
	historySize int
	now         func() time.Time

	mu    sync.Mutex
	hosts map[string]*hostState
	seq   uint64

	pubMu sync.Mutex
}

var (
	_ Store  = (*HostRegistry)(nil)
	_ Reader = (*HostRegistry)(nil)
)

type Option func(*HostRegistry)

// WithHistorySize sets how many samples are kept per host.
func WithHistorySize(n int) Option {
	return func(r *HostRegistry) {
		if n > 0 {
			r.historySize = n
		}
	}
}

// WithPublisher sets where change events go. Publish must not block.
func WithPublisher(p events.Publisher) Option {
	return func(r *HostRegistry) {
		r.publisher = p
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *HostRegistry) {
		r.logger = l
	}
}

// WithClock overrides the time stamped on events.
func WithClock(now func() time.Time) Option {
	return func(r *HostRegistry) {
		r.now = now
	}
}

func New(opts ...Option) *HostRegistry {
	r := &HostRegistry{
		logger:      logger.NewTestLogger(),
		historySize: models.DefaultHistorySize,
		now:         time.Now,
		hosts:       make(map[string]*hostState),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Upsert stores rec as the latest record for its host, replacing any
// previous one, appends a sample and publishes an Updated event.
func (r *HostRegistry) Upsert(rec models.StatusRecord) {
	r.mu.Lock()

	r.seq++
	seq := r.seq

	state, existed := r.hosts[rec.HostIdentity]
	if !existed {
		state = &hostState{history: newHistory(r.historySize)}
		r.hosts[rec.HostIdentity] = state
	}

	state.latest = rec
	state.history.push(models.Sample{
		Sequence:           seq,
		CPUUsagePercent:    rec.CPUUsagePercent,
		MemoryUsagePercent: rec.MemoryUsagePercent(),
	})

	evt := models.UpdatedEvent(rec, seq, r.now())

	r.pubMu.Lock()
	r.mu.Unlock()
	r.publishLocked(evt)

	if !existed {
		r.logger.Info().
			Str("host", rec.HostIdentity).
			Str("os", rec.OSDescription).
			Msg("Host registered")
	}
}

// Remove deletes host and publishes a Removed event. It reports whether the
// host was present; removing an absent host publishes nothing.
func (r *HostRegistry) Remove(host string) bool {
	r.mu.Lock()

	if _, ok := r.hosts[host]; !ok {
		r.mu.Unlock()
		return false
	}

	delete(r.hosts, host)

	evt := models.RemovedEvent(host, r.now())

	r.pubMu.Lock()
	r.mu.Unlock()
	r.publishLocked(evt)

	r.logger.Info().Str("host", host).Msg("Host removed")

	return true
}

// publishLocked is called with pubMu held and releases it.
func (r *HostRegistry) publishLocked(evt models.Event) {
	defer r.pubMu.Unlock()

	if r.publisher != nil {
		r.publisher.Publish(evt)
	}
}

// Snapshot returns a deep copy of every entry, sorted by host identity.
func (r *HostRegistry) Snapshot() []models.RegistryEntry {
	r.mu.Lock()

	entries := make([]models.RegistryEntry, 0, len(r.hosts))
	for _, state := range r.hosts {
		entries = append(entries, state.entry())
	}

	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Latest.HostIdentity < entries[j].Latest.HostIdentity
	})

	return entries
}

func (r *HostRegistry) Get(host string) (models.RegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.hosts[host]
	if !ok {
		return models.RegistryEntry{}, false
	}

	return state.entry(), true
}

func (r *HostRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.hosts)
}

// Sequence returns the number of updates applied so far.
func (r *HostRegistry) Sequence() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.seq
}

func (s *hostState) entry() models.RegistryEntry {
	return models.RegistryEntry{
		Latest:  s.latest,
		Samples: s.history.samples(),
	}
}
