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

package session

import (
	"io"

	"github.com/carverauto/hostmon/pkg/models"
)

//go:generate mockgen -destination=mock_store.go -package=session github.com/carverauto/hostmon/pkg/session Store

// Store receives the records decoded by a session.
type Store interface {
	Upsert(rec models.StatusRecord)
	Remove(hostIdentity string) bool
}

// Conn is the byte stream a session reads from. Implementations that also
// have a RemoteAddr() net.Addr method get it logged.
type Conn interface {
	io.ReadCloser
}
