// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package repro

import (
	"context"
	"testing"

	"github.com/absmach/bodyrace/client"
	"github.com/absmach/bodyrace/payload"
	"github.com/absmach/bodyrace/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

// sumOf adds up the data points of an int64 sum metric, optionally filtered
// by one string attribute.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if key != "" {
					v, ok := dp.Attributes.Value(attribute.Key(key))
					if !ok || v.AsString() != value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsRecordOutcomes(t *testing.T) {
	m, reader := newTestMetrics(t)
	e := NewEvaluator(testutil.DiscardLogger(), m, 1024, nil)

	body, err := payload.Generate(2048)
	require.NoError(t, err)

	ctx := context.Background()
	e.Evaluate(ctx, client.NewInboundMessage("a", "t", body))
	e.Evaluate(ctx, client.NewInboundMessage("b", "t", body))
	e.Evaluate(ctx, client.NewInboundMessage("c", "t", body[:3]))

	assert.Equal(t, int64(2), sumOf(t, reader, "bodyrace.evaluations", "outcome", string(OutcomeSuccess)))
	assert.Equal(t, int64(1), sumOf(t, reader, "bodyrace.evaluations", "outcome", string(OutcomeError)))
	assert.Equal(t, int64(3), sumOf(t, reader, "bodyrace.evaluations", "", ""))
}

func TestMetricsPoolDepth(t *testing.T) {
	m, reader := newTestMetrics(t)
	p := NewPool(1, testutil.DiscardLogger(), m)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(func() {}))
	}
	assert.Equal(t, int64(3), sumOf(t, reader, "bodyrace.pool.pending", "", ""))

	close(release)
	p.Close()
	assert.Equal(t, int64(0), sumOf(t, reader, "bodyrace.pool.pending", "", ""))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordSent(ctx, true)
		m.RecordReceived(ctx)
		m.RecordOutcome(ctx, Result{Outcome: OutcomeSuccess, Length: 10})
		m.PoolDepth(ctx, 1)
	})
}
