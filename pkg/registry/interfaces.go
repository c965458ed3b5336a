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

package registry

import "github.com/carverauto/hostmon/pkg/models"

// Store is the write side used by agent sessions.
type Store interface {
	Upsert(rec models.StatusRecord)
	Remove(hostIdentity string) bool
}

// Reader is the query side used by the API and dashboards.
type Reader interface {
	Snapshot() []models.RegistryEntry
	Get(hostIdentity string) (models.RegistryEntry, bool)
	Len() int
}
