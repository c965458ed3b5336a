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

// Package codec implements the agent wire format: a stream of frames, each an
// unsigned varint body length followed by a protobuf-wire encoded status
// record.
//
// Body fields:
//
//	1 host_identity      bytes
//	2 os_description     bytes
//	3 cpu_core_count     varint
//	4 cpu_usage_percent  fixed64 (IEEE-754 double)
//	5 total_memory_bytes varint
//	6 used_memory_bytes  zigzag varint
//	7 captured_at_sec    zigzag varint, unix seconds
//	8 status             bytes
//	9 captured_at_nanos  varint, 0..999999999
//
// Zero values are omitted, except that field 7 is always written for a
// non-zero CapturedAt so the epoch itself survives. Unknown fields are
// skipped and the last occurrence of a repeated field wins.
package codec

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/carverauto/hostmon/pkg/models"
)

// DefaultMaxFrameSize bounds the body length accepted by a Decoder.
const DefaultMaxFrameSize = models.DefaultMaxFrameSize

const (
	fieldHost        protowire.Number = 1
	fieldOS          protowire.Number = 2
	fieldCores       protowire.Number = 3
	fieldCPU         protowire.Number = 4
	fieldTotalMemory protowire.Number = 5
	fieldUsedMemory  protowire.Number = 6
	fieldCapturedAt  protowire.Number = 7
	fieldStatus      protowire.Number = 8
	fieldCapturedNs  protowire.Number = 9
)

const nanosPerSecond = int64(time.Second)

func appendBody(b []byte, rec *models.StatusRecord) []byte {
	if rec.HostIdentity != "" {
		b = protowire.AppendTag(b, fieldHost, protowire.BytesType)
		b = protowire.AppendString(b, rec.HostIdentity)
	}

	if rec.OSDescription != "" {
		b = protowire.AppendTag(b, fieldOS, protowire.BytesType)
		b = protowire.AppendString(b, rec.OSDescription)
	}

	if rec.CPUCoreCount != 0 {
		b = protowire.AppendTag(b, fieldCores, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(rec.CPUCoreCount))
	}

	if bits := math.Float64bits(rec.CPUUsagePercent); bits != 0 {
		b = protowire.AppendTag(b, fieldCPU, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, bits)
	}

	if rec.TotalMemoryBytes != 0 {
		b = protowire.AppendTag(b, fieldTotalMemory, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(rec.TotalMemoryBytes))
	}

	if rec.UsedMemoryBytes != 0 {
		b = protowire.AppendTag(b, fieldUsedMemory, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(rec.UsedMemoryBytes))
	}

	if !rec.CapturedAt.IsZero() {
		b = protowire.AppendTag(b, fieldCapturedAt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(rec.CapturedAt.Unix()))
	}

	if rec.Status != "" {
		b = protowire.AppendTag(b, fieldStatus, protowire.BytesType)
		b = protowire.AppendString(b, rec.Status)
	}

	if ns := rec.CapturedAt.Nanosecond(); ns != 0 {
		b = protowire.AppendTag(b, fieldCapturedNs, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ns))
	}

	return b
}

// invalidReason returns the empty Reason for a record that may go on the wire.
func invalidReason(rec *models.StatusRecord) Reason {
	switch {
	case rec.CPUCoreCount < 0:
		return ReasonNegativeCores
	case rec.TotalMemoryBytes < 0:
		return ReasonNegativeMemory
	default:
		return ""
	}
}

// bodyDecoder accumulates one frame body. The capture time arrives in two
// fields and is assembled once the body is consumed.
type bodyDecoder struct {
	rec     models.StatusRecord
	sec     int64
	nsec    int64
	hasTime bool
}

func unmarshalBody(b []byte) (models.StatusRecord, error) {
	var d bodyDecoder

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return models.StatusRecord{}, decodeErr(ReasonMalformed, protowire.ParseError(n))
		}

		b = b[n:]

		n, err := d.consumeField(num, typ, b)
		if err != nil {
			return models.StatusRecord{}, err
		}

		b = b[n:]
	}

	if d.hasTime {
		d.rec.CapturedAt = time.Unix(d.sec, d.nsec).UTC()
	}

	if reason := invalidReason(&d.rec); reason != "" {
		return models.StatusRecord{}, decodeErr(reason, nil)
	}

	return d.rec, nil
}

// consumeField stores a known field and returns the bytes used. Known
// numbers with an unexpected wire type are skipped like unknown fields.
func (d *bodyDecoder) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch {
	case typ == protowire.BytesType && (num == fieldHost || num == fieldOS || num == fieldStatus):
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, decodeErr(ReasonMalformed, protowire.ParseError(n))
		}

		switch num {
		case fieldHost:
			d.rec.HostIdentity = string(v)
		case fieldOS:
			d.rec.OSDescription = string(v)
		default:
			d.rec.Status = string(v)
		}

		return n, nil
	case typ == protowire.VarintType && (num == fieldCores || num == fieldTotalMemory ||
		num == fieldUsedMemory || num == fieldCapturedAt || num == fieldCapturedNs):
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, decodeErr(ReasonMalformed, protowire.ParseError(n))
		}

		return n, d.setVarint(num, v)
	case typ == protowire.Fixed64Type && num == fieldCPU:
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return 0, decodeErr(ReasonMalformed, protowire.ParseError(n))
		}

		d.rec.CPUUsagePercent = math.Float64frombits(v)

		return n, nil
	default:
		n := protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return 0, decodeErr(ReasonMalformed, protowire.ParseError(n))
		}

		return n, nil
	}
}

func (d *bodyDecoder) setVarint(num protowire.Number, v uint64) error {
	switch num {
	case fieldCores:
		cores := int64(v)
		if cores > math.MaxInt {
			return decodeErr(ReasonMalformed, errCoreCountOverflow)
		}

		d.rec.CPUCoreCount = int(cores)
	case fieldTotalMemory:
		d.rec.TotalMemoryBytes = int64(v)
	case fieldUsedMemory:
		d.rec.UsedMemoryBytes = protowire.DecodeZigZag(v)
	case fieldCapturedAt:
		d.sec = protowire.DecodeZigZag(v)
		d.hasTime = true
	default:
		if v >= uint64(nanosPerSecond) {
			return decodeErr(ReasonMalformed, errNanosOutOfRange)
		}

		d.nsec = int64(v)
		d.hasTime = true
	}

	return nil
}
