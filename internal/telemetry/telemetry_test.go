// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/bodyrace/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestInitProviderDisabled(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.Enabled = false

	shutdown, err := InitProvider(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.IsType(t, tracenoop.TracerProvider{}, otel.GetTracerProvider())
	assert.IsType(t, metricnoop.MeterProvider{}, otel.GetMeterProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitProviderEnabled(t *testing.T) {
	cases := []struct {
		name    string
		metrics bool
		traces  bool
	}{
		{name: "metrics and traces", metrics: true, traces: true},
		{name: "metrics only", metrics: true},
		{name: "traces only", traces: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default().Telemetry
			cfg.Enabled = true
			cfg.Endpoint = "127.0.0.1:1"
			cfg.MetricsEnabled = tc.metrics
			cfg.TracesEnabled = tc.traces

			shutdown, err := InitProvider(context.Background(), cfg, "test")
			require.NoError(t, err)

			if tc.traces {
				assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
			} else {
				assert.IsType(t, tracenoop.TracerProvider{}, otel.GetTracerProvider())
			}
			if tc.metrics {
				assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())
			} else {
				assert.IsType(t, metricnoop.MeterProvider{}, otel.GetMeterProvider())
			}

			// Nothing listens on the endpoint, so a final flush may fail.
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = shutdown(ctx)
		})
	}
}
