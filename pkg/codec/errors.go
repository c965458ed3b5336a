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
	"errors"
	"fmt"
)

var (
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("decode error")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")

	// ErrInvalidRecord is returned by the encoder for records a decoder
	// would reject.
	ErrInvalidRecord = errors.New("invalid status record")

	errLengthOverflow    = errors.New("length prefix overflows 64 bits")
	errCoreCountOverflow = errors.New("cpu core count overflows int")
	errNanosOutOfRange   = errors.New("captured_at nanoseconds out of range")
)

// Reason names why a frame could not be decoded.
type Reason string

const (
	ReasonTruncated      Reason = "truncated frame"
	ReasonFrameTooLarge  Reason = "frame too large"
	ReasonMalformed      Reason = "malformed frame"
	ReasonNegativeCores  Reason = "negative cpu core count"
	ReasonNegativeMemory Reason = "negative total memory"
)

// DecodeError reports bytes that do not form a valid frame. The stream is
// not usable after one.
type DecodeError struct {
	Reason Reason
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode error: %s", e.Reason)
	}

	return fmt.Sprintf("decode error: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}

	return []error{ErrDecode, e.Err}
}

// TransportError wraps a failure of the underlying reader other than a
// clean end of stream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

func decodeErr(reason Reason, err error) *DecodeError {
	return &DecodeError{Reason: reason, Err: err}
}
