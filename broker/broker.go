// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package broker starts the embedded broker a reproduction run talks to.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/bodyrace/config"
)

var (
	ErrUnknownType    = errors.New("unknown broker type")
	ErrNotReady       = errors.New("broker not ready for connections")
	ErrAlreadyStarted = errors.New("broker already started")
)

// headerAllowance covers topic, message ID and protocol framing on top of the
// payload when sizing the broker's packet limit.
const headerAllowance = 4 * 1024

// Server is an embedded broker bound to a local address.
type Server interface {
	// Start binds the listener and returns once clients can connect.
	Start(ctx context.Context) error

	// Addr returns the host:port the broker listens on.
	Addr() string

	// Type returns the broker implementation name.
	Type() string

	Close() error
}

// Config holds embedded broker configuration.
type Config struct {
	Type            string
	Address         string // host:port
	MaxMessageBytes int
	StartupTimeout  time.Duration
}

// NewConfig builds the broker configuration from the run configuration.
func NewConfig(cfg *config.Config) (Config, error) {
	addr, err := cfg.BrokerAddr()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Type:            cfg.Broker.Type,
		Address:         addr,
		MaxMessageBytes: cfg.Broker.MaxMessageBytes,
		StartupTimeout:  cfg.Broker.StartupTimeout,
	}, nil
}

// New returns the broker implementation selected by cfg.Type.
func New(cfg Config, logger *slog.Logger) (Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case config.BrokerMQTT:
		return NewMQTT(cfg, logger), nil
	case config.BrokerNATS:
		return NewNATS(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// Start creates the selected broker and starts it.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (Server, error) {
	srv, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start %s broker on %s: %w", cfg.Type, cfg.Address, err)
	}
	return srv, nil
}
