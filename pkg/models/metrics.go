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

// Package models pkg/models/metrics.go
package models

import "encoding/json"

// DefaultHistorySize is the number of samples retained per host for charting.
const DefaultHistorySize = 50

// Sample is one charting point derived from a StatusRecord. Sequence is
// shared across all hosts and orders updates as the registry observed them.
type Sample struct {
	Sequence           uint64  `json:"sequence"`
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	type plain Sample

	return json.Marshal(struct {
		plain
		CPUUsagePercent *float64 `json:"cpu_usage_percent"`
	}{
		plain:           plain(s),
		CPUUsagePercent: finite(s.CPUUsagePercent),
	})
}

// RegistryEntry is the registry's view of one host: the latest record plus
// the bounded window of recent samples, oldest first.
type RegistryEntry struct {
	Latest  StatusRecord `json:"latest"`
	Samples []Sample     `json:"samples"`
}

// HostIdentity returns the key the entry is stored under.
func (e RegistryEntry) HostIdentity() string {
	return e.Latest.HostIdentity
}

// Clone returns a copy that shares no memory with e.
func (e RegistryEntry) Clone() RegistryEntry {
	samples := make([]Sample, len(e.Samples))
	copy(samples, e.Samples)

	return RegistryEntry{Latest: e.Latest, Samples: samples}
}
