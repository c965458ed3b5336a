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

// history is a fixed-capacity FIFO of samples. Once full, each push
// overwrites the oldest sample.
type history struct {
	buf   []models.Sample
	start int
	n     int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]models.Sample, capacity)}
}

func (h *history) push(s models.Sample) {
	if len(h.buf) == 0 {
		return
	}

	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++

		return
	}

	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// samples returns a copy, oldest first.
func (h *history) samples() []models.Sample {
	out := make([]models.Sample, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}

	return out
}
