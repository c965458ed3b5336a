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
	"bytes"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/carverauto/hostmon/pkg/models"
)

func sampleRecord() models.StatusRecord {
	return models.StatusRecord{
		HostIdentity:     "web-01",
		OSDescription:    "Ubuntu 24.04 LTS",
		CPUCoreCount:     8,
		CPUUsagePercent:  42.5,
		TotalMemoryBytes: 16 << 30,
		UsedMemoryBytes:  6 << 30,
		CapturedAt:       time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC),
		Status:           "Connected",
	}
}

func decodeAll(t *testing.T, data []byte, opts ...DecoderOption) ([]models.StatusRecord, error) {
	t.Helper()

	dec := NewDecoder(bytes.NewReader(data), opts...)

	var out []models.StatusRecord

	for {
		res, err := dec.Decode()
		if err != nil {
			return out, err
		}

		if res.Kind == KindEndOfStream {
			return out, nil
		}

		out = append(out, res.Record)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := map[string]models.StatusRecord{
		"full record":     sampleRecord(),
		"zero record":     {},
		"empty strings":   {CPUCoreCount: 1, TotalMemoryBytes: 1},
		"nan cpu":         {HostIdentity: "h", CPUUsagePercent: math.NaN()},
		"negative zero":   {HostIdentity: "h", CPUUsagePercent: math.Copysign(0, -1)},
		"used over total": {HostIdentity: "h", TotalMemoryBytes: 100, UsedMemoryBytes: 250},
		"negative used":   {HostIdentity: "h", UsedMemoryBytes: -1},
		"unicode host":    {HostIdentity: "hôte-東京", Status: "Dégradé"},
		"pre-epoch time":  {HostIdentity: "h", CapturedAt: time.Date(1969, 7, 20, 20, 17, 0, 0, time.UTC)},
		"epoch":           {HostIdentity: "h", CapturedAt: time.Unix(0, 0)},
		"year 2300":       {HostIdentity: "h", CapturedAt: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)},
		"year 1600":       {HostIdentity: "h", CapturedAt: time.Date(1600, 1, 1, 0, 0, 0, 700, time.UTC)},
		"year 9999":       {HostIdentity: "h", CapturedAt: time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)},
		"max values": {
			HostIdentity:     "h",
			CPUCoreCount:     math.MaxInt32,
			TotalMemoryBytes: math.MaxInt64,
			UsedMemoryBytes:  math.MinInt64,
			CPUUsagePercent:  math.Inf(1),
		},
	}

	for name, rec := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			frame, err := Encode(rec)
			require.NoError(t, err)

			got, err := decodeAll(t, frame)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.True(t, rec.Equal(got[0]), "want %+v got %+v", rec, got[0])
		})
	}
}

func TestDecoder_MultipleFramesThenEndOfStream(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	enc := NewEncoder(&buf)

	for _, host := range []string{"a", "b", "c"} {
		rec := sampleRecord()
		rec.HostIdentity = host
		require.NoError(t, enc.Encode(rec))
	}

	dec := NewDecoder(&buf)

	for _, host := range []string{"a", "b", "c"} {
		res, err := dec.Decode()
		require.NoError(t, err)
		require.Equal(t, KindRecord, res.Kind)
		assert.Equal(t, host, res.Record.HostIdentity)
	}

	res, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, KindEndOfStream, res.Kind)

	// stays at end of stream
	res, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, KindEndOfStream, res.Kind)
}

func TestDecoder_EmptyStream(t *testing.T) {
	t.Parallel()

	got, err := decodeAll(t, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecoder_EmptyBodyIsZeroRecord(t *testing.T) {
	t.Parallel()

	got, err := decodeAll(t, []byte{0x00})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(models.StatusRecord{}))
}

func frameOf(body []byte) []byte {
	return append(protowire.AppendVarint(nil, uint64(len(body))), body...)
}

func TestDecoder_SkipsUnknownFields(t *testing.T) {
	t.Parallel()

	var body []byte
	body = protowire.AppendTag(body, 99, protowire.BytesType)
	body = protowire.AppendString(body, "from the future")
	body = protowire.AppendTag(body, fieldHost, protowire.BytesType)
	body = protowire.AppendString(body, "a")
	body = protowire.AppendTag(body, 100, protowire.Fixed32Type)
	body = protowire.AppendFixed32(body, 7)
	// known number, unexpected wire type
	body = protowire.AppendTag(body, fieldCores, protowire.BytesType)
	body = protowire.AppendString(body, "eight")

	got, err := decodeAll(t, frameOf(body))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].HostIdentity)
	assert.Equal(t, 0, got[0].CPUCoreCount)
}

func TestDecoder_LastDuplicateWins(t *testing.T) {
	t.Parallel()

	var body []byte
	body = protowire.AppendTag(body, fieldHost, protowire.BytesType)
	body = protowire.AppendString(body, "first")
	body = protowire.AppendTag(body, fieldHost, protowire.BytesType)
	body = protowire.AppendString(body, "second")

	got, err := decodeAll(t, frameOf(body))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].HostIdentity)
}

func requireDecodeError(t *testing.T, err error, reason Reason) {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, ErrDecode)
	assert.NotErrorIs(t, err, ErrTransport)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, reason, de.Reason)
}

func TestDecoder_Errors(t *testing.T) {
	t.Parallel()

	valid, err := Encode(sampleRecord())
	require.NoError(t, err)

	negCores := protowire.AppendTag(nil, fieldCores, protowire.VarintType)
	negCores = protowire.AppendVarint(negCores, uint64(0xFFFFFFFFFFFFFFFF))

	negTotal := protowire.AppendTag(nil, fieldTotalMemory, protowire.VarintType)
	negTotal = protowire.AppendVarint(negTotal, uint64(1)<<63)

	badNanos := protowire.AppendTag(nil, fieldCapturedAt, protowire.VarintType)
	badNanos = protowire.AppendVarint(badNanos, protowire.EncodeZigZag(1))
	badNanos = protowire.AppendTag(badNanos, fieldCapturedNs, protowire.VarintType)
	badNanos = protowire.AppendVarint(badNanos, uint64(time.Second))

	badString := protowire.AppendTag(nil, fieldHost, protowire.BytesType)
	badString = protowire.AppendVarint(badString, 50)
	badString = append(badString, 'x')

	tests := []struct {
		name   string
		data   []byte
		reason Reason
		opts   []DecoderOption
	}{
		{name: "eof inside length prefix", data: []byte{0x80}, reason: ReasonTruncated},
		{name: "eof inside body", data: valid[:len(valid)-3], reason: ReasonTruncated},
		{name: "length with no body", data: valid[:1], reason: ReasonTruncated},
		{name: "oversize length", data: protowire.AppendVarint(nil, DefaultMaxFrameSize+1), reason: ReasonFrameTooLarge},
		{name: "custom limit", data: valid, reason: ReasonFrameTooLarge, opts: []DecoderOption{WithMaxFrameSize(4)}},
		{name: "overflowing length", data: bytes.Repeat([]byte{0xFF}, 11), reason: ReasonMalformed},
		{name: "bad tag", data: frameOf([]byte{0x00}), reason: ReasonMalformed},
		{name: "string past end of body", data: frameOf(badString), reason: ReasonMalformed},
		{name: "negative cores", data: frameOf(negCores), reason: ReasonNegativeCores},
		{name: "negative total memory", data: frameOf(negTotal), reason: ReasonNegativeMemory},
		{name: "nanoseconds out of range", data: frameOf(badNanos), reason: ReasonMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := decodeAll(t, tt.data, tt.opts...)
			requireDecodeError(t, err, tt.reason)
			assert.Empty(t, got, "a failed decode must not yield a record")
		})
	}
}

func TestDecoder_CoreCountBeyondInt(t *testing.T) {
	t.Parallel()

	if strconv.IntSize == 64 {
		t.Skip("every non-negative int64 fits in int")
	}

	body := protowire.AppendTag(nil, fieldCores, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(math.MaxInt32)+1)

	got, err := decodeAll(t, frameOf(body))
	requireDecodeError(t, err, ReasonMalformed)
	assert.Empty(t, got)
}

func TestDecoder_CaptureTimeIsUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*60*60)
	at := time.Date(2300, 6, 1, 12, 0, 0, 123, loc)

	frame, err := Encode(models.StatusRecord{HostIdentity: "h", CapturedAt: at})
	require.NoError(t, err)

	got, err := decodeAll(t, frame)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, at.Equal(got[0].CapturedAt))
	assert.Equal(t, time.UTC, got[0].CapturedAt.Location())
}

func TestDecoder_ErrorAfterGoodFrame(t *testing.T) {
	t.Parallel()

	valid, err := Encode(sampleRecord())
	require.NoError(t, err)

	data := append(append([]byte{}, valid...), valid[:5]...)

	got, err := decodeAll(t, data)
	requireDecodeError(t, err, ReasonTruncated)
	require.Len(t, got, 1)
}

func TestDecoder_TransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset by peer")

	valid, err := Encode(sampleRecord())
	require.NoError(t, err)

	t.Run("before frame", func(t *testing.T) {
		t.Parallel()

		_, err := NewDecoder(iotest.ErrReader(boom)).Decode()
		require.ErrorIs(t, err, ErrTransport)
		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrDecode)
	})

	t.Run("inside body", func(t *testing.T) {
		t.Parallel()

		r := io.MultiReader(bytes.NewReader(valid[:6]), iotest.ErrReader(boom))

		_, err := NewDecoder(r).Decode()
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.ErrorIs(t, te, boom)
	})
}

func TestDecoder_OneByteReads(t *testing.T) {
	t.Parallel()

	frame, err := Encode(sampleRecord())
	require.NoError(t, err)

	res, err := NewDecoder(iotest.OneByteReader(bytes.NewReader(frame))).Decode()
	require.NoError(t, err)
	assert.True(t, sampleRecord().Equal(res.Record))
}

func TestEncode_RejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	_, err := Encode(models.StatusRecord{CPUCoreCount: -1})
	require.ErrorIs(t, err, ErrInvalidRecord)

	_, err = Encode(models.StatusRecord{TotalMemoryBytes: -1})
	require.ErrorIs(t, err, ErrInvalidRecord)

	_, err = Encode(models.StatusRecord{HostIdentity: strings.Repeat("x", DefaultMaxFrameSize)})
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestEncoder_WriteFailure(t *testing.T) {
	t.Parallel()

	err := NewEncoder(failingWriter{}).Encode(sampleRecord())
	require.ErrorIs(t, err, ErrTransport)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestAppendFrame_Layout(t *testing.T) {
	t.Parallel()

	frame, err := AppendFrame([]byte{0xAA}, models.StatusRecord{HostIdentity: "a", CPUCoreCount: 2})
	require.NoError(t, err)

	// prefix byte kept, then length 5: tag(1,bytes) len 'a' tag(3,varint) 2
	assert.Equal(t, []byte{0xAA, 0x05, 0x0A, 0x01, 'a', 0x18, 0x02}, frame)
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "record", KindRecord.String())
	assert.Equal(t, "end_of_stream", KindEndOfStream.String())
	assert.Equal(t, "kind(0)", Kind(0).String())
}
