// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/bodyrace/config"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

const mqttListenerID = "bodyrace-tcp"

// MQTTServer is an embedded MQTT broker.
type MQTTServer struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	server *mqtt.Server
}

var _ Server = (*MQTTServer)(nil)

// NewMQTT creates an embedded MQTT broker. It does not bind until Start.
func NewMQTT(cfg Config, logger *slog.Logger) *MQTTServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTServer{
		cfg:    cfg,
		logger: logger.With(slog.String("broker", config.BrokerMQTT)),
	}
}

// Start binds the TCP listener and starts serving.
func (s *MQTTServer) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return ErrAlreadyStarted
	}

	caps := mqtt.NewDefaultServerCapabilities()
	if s.cfg.MaxMessageBytes > 0 {
		caps.MaximumPacketSize = uint32(s.cfg.MaxMessageBytes + headerAllowance)
	}

	server := mqtt.New(&mqtt.Options{
		Capabilities: caps,
		Logger:       s.logger,
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		_ = server.Close()
		return fmt.Errorf("failed to add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      mqttListenerID,
		Address: s.cfg.Address,
	})
	if err := server.AddListener(tcp); err != nil {
		_ = server.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}

	if err := server.Serve(); err != nil {
		_ = server.Close()
		return err
	}

	s.server = server
	s.logger.Info("embedded broker started", slog.String("address", s.cfg.Address))
	return nil
}

// Addr returns the configured listen address.
func (s *MQTTServer) Addr() string {
	return s.cfg.Address
}

// Type returns "mqtt".
func (s *MQTTServer) Type() string {
	return config.BrokerMQTT
}

// Close stops the broker and its listener.
func (s *MQTTServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	return err
}
