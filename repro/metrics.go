// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package repro

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/absmach/bodyrace/repro"

// Metrics holds OpenTelemetry instruments for a reproduction run.
// A nil *Metrics records nothing.
type Metrics struct {
	messagesSent     metric.Int64Counter
	messagesReceived metric.Int64Counter
	evaluations      metric.Int64Counter
	messageSize      metric.Int64Histogram
	poolPending      metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on mp, or on the global provider when
// mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	m := &Metrics{}
	var err error

	m.messagesSent, err = meter.Int64Counter(
		"bodyrace.messages.sent",
		metric.WithDescription("Messages published by the producer loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesSent counter: %w", err)
	}

	m.messagesReceived, err = meter.Int64Counter(
		"bodyrace.messages.received",
		metric.WithDescription("Messages received by the consumer loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesReceived counter: %w", err)
	}

	m.evaluations, err = meter.Int64Counter(
		"bodyrace.evaluations",
		metric.WithDescription("Evaluated messages by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluations counter: %w", err)
	}

	m.messageSize, err = meter.Int64Histogram(
		"bodyrace.message.size.bytes",
		metric.WithDescription("Body length of evaluated messages"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messageSize histogram: %w", err)
	}

	m.poolPending, err = meter.Int64UpDownCounter(
		"bodyrace.pool.pending",
		metric.WithDescription("Evaluations queued but not yet started"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poolPending gauge: %w", err)
	}

	return m, nil
}

// RecordSent records a published message.
func (m *Metrics) RecordSent(ctx context.Context, large bool) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, 1, metric.WithAttributes(attribute.Bool("large", large)))
}

// RecordReceived records a received message.
func (m *Metrics) RecordReceived(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesReceived.Add(ctx, 1)
}

// RecordOutcome records one evaluation result.
func (m *Metrics) RecordOutcome(ctx context.Context, r Result) {
	if m == nil {
		return
	}
	m.evaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(r.Outcome))))
	if r.Length > 0 {
		m.messageSize.Record(ctx, r.Length)
	}
}

// PoolDepth adjusts the pending evaluation count.
func (m *Metrics) PoolDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.poolPending.Add(ctx, delta)
}
