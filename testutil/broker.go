// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides embedded brokers and log capture for tests.
package testutil

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/absmach/bodyrace/broker"
	"github.com/stretchr/testify/require"
)

// BrokerTypes lists every broker implementation tests should cover.
var BrokerTypes = []string{"mqtt", "nats"}

// FreeAddr returns a loopback host:port that was free at the time of the call.
func FreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// StartBroker starts an embedded broker of the given type on a free port and
// stops it when the test ends.
func StartBroker(t *testing.T, brokerType string) broker.Server {
	t.Helper()

	cfg := broker.Config{
		Type:            brokerType,
		Address:         FreeAddr(t),
		MaxMessageBytes: 4 * 1024 * 1024,
		StartupTimeout:  5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv, err := broker.Start(ctx, cfg, DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

// BrokerURL returns the client URL for a started broker.
func BrokerURL(srv broker.Server) string {
	if srv.Type() == "nats" {
		return "nats://" + srv.Addr()
	}
	return "tcp://" + srv.Addr()
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
