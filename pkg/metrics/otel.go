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

package metrics

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MeterName scopes every hostmon instrument.
	MeterName = "hostmon.ingest"

	metricSessionsAccepted = "hostmon_sessions_accepted_total"
	metricSessionsRejected = "hostmon_sessions_rejected_total"
	metricSessionsActive   = "hostmon_sessions_active"
	metricSessionsClosed   = "hostmon_sessions_closed_total"
	metricRecordsIngested  = "hostmon_records_ingested_total"
	metricDecodeErrors     = "hostmon_decode_errors_total"
	metricHostsRegistered  = "hostmon_hosts_registered"
	metricEventsDropped    = "hostmon_events_dropped"

	attrReason = "reason"
)

// OTelRecorder implements Recorder with OpenTelemetry instruments.
type OTelRecorder struct {
	meter metric.Meter

	accepted metric.Int64Counter
	rejected metric.Int64Counter
	active   metric.Int64UpDownCounter
	closed   metric.Int64Counter
	records  metric.Int64Counter
	decode   metric.Int64Counter
}

var _ Recorder = (*OTelRecorder)(nil)

// NewOTelRecorder registers the instruments on meter, or on the global
// provider's MeterName meter when meter is nil.
func NewOTelRecorder(meter metric.Meter) (*OTelRecorder, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	r := &OTelRecorder{meter: meter}

	var err, e error

	r.accepted, e = meter.Int64Counter(metricSessionsAccepted,
		metric.WithDescription("Agent connections accepted by the listener"))
	err = errors.Join(err, e)

	r.rejected, e = meter.Int64Counter(metricSessionsRejected,
		metric.WithDescription("Agent connections closed because every session slot was taken"))
	err = errors.Join(err, e)

	r.active, e = meter.Int64UpDownCounter(metricSessionsActive,
		metric.WithDescription("Sessions currently running"))
	err = errors.Join(err, e)

	r.closed, e = meter.Int64Counter(metricSessionsClosed,
		metric.WithDescription("Sessions ended, by reason"))
	err = errors.Join(err, e)

	r.records, e = meter.Int64Counter(metricRecordsIngested,
		metric.WithDescription("Status records decoded and stored"))
	err = errors.Join(err, e)

	r.decode, e = meter.Int64Counter(metricDecodeErrors,
		metric.WithDescription("Sessions terminated by an undecodable frame, by reason"))
	err = errors.Join(err, e)

	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *OTelRecorder) SessionAccepted(ctx context.Context) {
	r.accepted.Add(ctx, 1)
	r.active.Add(ctx, 1)
}

func (r *OTelRecorder) SessionRejected(ctx context.Context) {
	r.rejected.Add(ctx, 1)
}

func (r *OTelRecorder) SessionClosed(ctx context.Context, reason string) {
	r.active.Add(ctx, -1)
	r.closed.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

func (r *OTelRecorder) RecordIngested(ctx context.Context) {
	r.records.Add(ctx, 1)
}

func (r *OTelRecorder) DecodeError(ctx context.Context, reason string) {
	r.decode.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// ObserveRegistry reports the registry size and the broker's dropped-event
// count on every collection. Unregister the returned registration to stop.
func (r *OTelRecorder) ObserveRegistry(hosts func() int, dropped func() uint64) (metric.Registration, error) {
	hostGauge, err := r.meter.Int64ObservableGauge(metricHostsRegistered,
		metric.WithDescription("Hosts currently present in the registry"))
	if err != nil {
		return nil, err
	}

	droppedGauge, err := r.meter.Int64ObservableGauge(metricEventsDropped,
		metric.WithDescription("Events discarded for slow subscribers"))
	if err != nil {
		return nil, err
	}

	return r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(hostGauge, int64(hosts()))
		o.ObserveInt64(droppedGauge, int64(dropped()))

		return nil
	}, hostGauge, droppedGauge)
}
