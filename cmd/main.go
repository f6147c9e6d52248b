// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/bodyrace/broker"
	"github.com/absmach/bodyrace/config"
	"github.com/absmach/bodyrace/internal/logging"
	"github.com/absmach/bodyrace/internal/telemetry"
	"github.com/absmach/bodyrace/repro"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"broker", cfg.Broker.Type,
		"url", cfg.Broker.URL,
		"topic", cfg.Topic.Name,
		"message_bytes", cfg.Producer.MessageBytes,
		"large_message_threshold", cfg.Broker.LargeMessageThreshold,
		"interval", cfg.Producer.Interval,
		"dispatch", cfg.Consumer.Dispatch,
		"workers", cfg.Consumer.Workers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := telemetry.InitProvider(ctx, cfg.Telemetry, cfg.Consumer.ClientID)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("Telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := repro.NewMetrics(nil)
	if err != nil {
		slog.Error("Failed to create metrics", "error", err)
		os.Exit(1)
	}

	brokerCfg, err := broker.NewConfig(cfg)
	if err != nil {
		slog.Error("Invalid broker configuration", "error", err)
		os.Exit(1)
	}

	// The broker logs at its own, usually quieter, level.
	brokerLogger := logging.New(os.Stdout, cfg.Broker.LogLevel, cfg.Log.Format)
	srv, err := broker.Start(ctx, brokerCfg, brokerLogger)
	if err != nil {
		slog.Error("Failed to start broker", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	slog.Info("Broker started", "type", srv.Type(), "address", srv.Addr())

	h := repro.New(cfg, logger, repro.WithMetrics(metrics))
	if err := h.Run(ctx); err != nil {
		slog.Error("Reproduction loops stopped", "error", err)
	}

	// Loops are not restarted; the broker stays up until interrupted.
	<-ctx.Done()
	slog.Info("Shutting down")
}
