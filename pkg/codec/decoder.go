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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/carverauto/hostmon/pkg/models"
)

// Kind tells a record apart from the end of the stream.
type Kind int

const (
	KindRecord Kind = iota + 1
	KindEndOfStream
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindEndOfStream:
		return "end_of_stream"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of a successful Decode call. Record is only set
// when Kind is KindRecord.
type Result struct {
	Kind   Kind
	Record models.StatusRecord
}

// Decoder reads frames from a stream. It is not safe for concurrent use.
type Decoder struct {
	r            *bufio.Reader
	maxFrameSize int
	body         []byte
}

type DecoderOption func(*Decoder)

// WithMaxFrameSize caps the accepted body length. Non-positive values keep
// the default.
func WithMaxFrameSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrameSize = n
		}
	}
}

func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:            bufio.NewReader(r),
		maxFrameSize: DefaultMaxFrameSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Decode reads the next frame. A stream that ends exactly on a frame
// boundary yields KindEndOfStream with a nil error. Errors are either
// *DecodeError or *TransportError.
func (d *Decoder) Decode() (Result, error) {
	length, err := d.readLength()
	if errors.Is(err, io.EOF) {
		return Result{Kind: KindEndOfStream}, nil
	}

	if err != nil {
		return Result{}, err
	}

	if length > uint64(d.maxFrameSize) {
		return Result{}, decodeErr(ReasonFrameTooLarge,
			fmt.Errorf("%d bytes exceeds limit of %d", length, d.maxFrameSize))
	}

	if cap(d.body) < int(length) {
		d.body = make([]byte, length)
	}

	body := d.body[:length]

	if _, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Result{}, decodeErr(ReasonTruncated, io.ErrUnexpectedEOF)
		}

		return Result{}, &TransportError{Err: err}
	}

	rec, err := unmarshalBody(body)
	if err != nil {
		return Result{}, err
	}

	return Result{Kind: KindRecord, Record: rec}, nil
}

// readLength returns io.EOF only when the stream ends before the first byte
// of a length prefix.
func (d *Decoder) readLength() (uint64, error) {
	var buf [binary.MaxVarintLen64]byte

	for i := range buf {
		c, err := d.r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return 0, &TransportError{Err: err}
			}

			if i == 0 {
				return 0, io.EOF
			}

			return 0, decodeErr(ReasonTruncated, io.ErrUnexpectedEOF)
		}

		buf[i] = c

		if c < 0x80 {
			v, n := protowire.ConsumeVarint(buf[:i+1])
			if n < 0 {
				return 0, decodeErr(ReasonMalformed, protowire.ParseError(n))
			}

			return v, nil
		}
	}

	return 0, decodeErr(ReasonMalformed, errLengthOverflow)
}
