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

// Package models pkg/models/status.go
package models

import (
	"encoding/json"
	"math"
	"time"
)

// StatusRecord is a snapshot of one host's resource usage at one instant.
// Records are values; nothing in the server mutates one after it is decoded.
type StatusRecord struct {
	HostIdentity     string    `json:"host_identity"`
	OSDescription    string    `json:"os_description"`
	CPUCoreCount     int       `json:"cpu_core_count"`
	CPUUsagePercent  float64   `json:"cpu_usage_percent"`
	TotalMemoryBytes int64     `json:"total_memory_bytes"`
	UsedMemoryBytes  int64     `json:"used_memory_bytes"`
	CapturedAt       time.Time `json:"captured_at"`
	Status           string    `json:"status"`
}

// MemoryUsagePercent returns used memory as a percentage of total memory,
// or 0 when the host reported no total.
func (r StatusRecord) MemoryUsagePercent() float64 {
	if r.TotalMemoryBytes <= 0 {
		return 0
	}

	return float64(r.UsedMemoryBytes) * 100 / float64(r.TotalMemoryBytes)
}

// Equal reports whether two records carry the same values. CPU usage is
// compared bit for bit so a NaN sample equals itself.
func (r StatusRecord) Equal(other StatusRecord) bool {
	return r.HostIdentity == other.HostIdentity &&
		r.OSDescription == other.OSDescription &&
		r.CPUCoreCount == other.CPUCoreCount &&
		math.Float64bits(r.CPUUsagePercent) == math.Float64bits(other.CPUUsagePercent) &&
		r.TotalMemoryBytes == other.TotalMemoryBytes &&
		r.UsedMemoryBytes == other.UsedMemoryBytes &&
		r.CapturedAt.Equal(other.CapturedAt) &&
		r.Status == other.Status
}

// MarshalJSON writes a non-finite CPU usage as null, which encoding/json
// cannot represent otherwise.
func (r StatusRecord) MarshalJSON() ([]byte, error) {
	type plain StatusRecord

	return json.Marshal(struct {
		plain
		CPUUsagePercent *float64 `json:"cpu_usage_percent"`
	}{
		plain:           plain(r),
		CPUUsagePercent: finite(r.CPUUsagePercent),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	return &v
}
