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

package codec

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/carverauto/hostmon/pkg/models"
)

// AppendFrame appends the framed encoding of rec to dst.
func AppendFrame(dst []byte, rec models.StatusRecord) ([]byte, error) {
	if reason := invalidReason(&rec); reason != "" {
		return dst, fmt.Errorf("%w: %s", ErrInvalidRecord, reason)
	}

	body := appendBody(nil, &rec)
	if len(body) > DefaultMaxFrameSize {
		return dst, fmt.Errorf("%w: %s (%d bytes)", ErrInvalidRecord, ReasonFrameTooLarge, len(body))
	}

	dst = protowire.AppendVarint(dst, uint64(len(body)))

	return append(dst, body...), nil
}

// Encode returns one frame holding rec.
func Encode(rec models.StatusRecord) ([]byte, error) {
	return AppendFrame(nil, rec)
}

// Encoder writes frames to an io.Writer, one Write call per record.
type Encoder struct {
	w   io.Writer
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(rec models.StatusRecord) error {
	frame, err := AppendFrame(e.buf[:0], rec)
	if err != nil {
		return err
	}

	e.buf = frame

	if _, err := e.w.Write(frame); err != nil {
		return &TransportError{Err: err}
	}

	return nil
}
