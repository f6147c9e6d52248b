// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/absmach/bodyrace/config"
	"github.com/nats-io/nats-server/v2/server"
)

const defaultStartupTimeout = 5 * time.Second

// NATSServer is an embedded NATS broker.
type NATSServer struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	server *server.Server
}

var _ Server = (*NATSServer)(nil)

// NewNATS creates an embedded NATS broker. It does not bind until Start.
func NewNATS(cfg Config, logger *slog.Logger) *NATSServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSServer{
		cfg:    cfg,
		logger: logger.With(slog.String("broker", config.BrokerNATS)),
	}
}

// Start runs the server and waits until it accepts client connections.
func (s *NATSServer) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return ErrAlreadyStarted
	}

	opts, err := s.options()
	if err != nil {
		return err
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	ns.SetLogger(&natsLogger{logger: s.logger}, s.logger.Enabled(ctx, slog.LevelDebug), false)

	go ns.Start()

	timeout := s.cfg.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if !ns.ReadyForConnections(timeout) {
		ns.Shutdown()
		return fmt.Errorf("%w after %s", ErrNotReady, timeout)
	}

	s.server = ns
	s.logger.Info("embedded broker started", slog.String("address", s.cfg.Address))
	return nil
}

func (s *NATSServer) options() (*server.Options, error) {
	host, portStr, err := net.SplitHostPort(s.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s.cfg.Address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	opts := &server.Options{
		Host:   host,
		Port:   port,
		NoSigs: true,
	}
	if s.cfg.MaxMessageBytes > 0 {
		if s.cfg.MaxMessageBytes > math.MaxInt32-headerAllowance {
			return nil, fmt.Errorf("max message size %d too large", s.cfg.MaxMessageBytes)
		}
		opts.MaxPayload = int32(s.cfg.MaxMessageBytes + headerAllowance)
	}
	return opts, nil
}

// Addr returns the configured listen address.
func (s *NATSServer) Addr() string {
	return s.cfg.Address
}

// Type returns "nats".
func (s *NATSServer) Type() string {
	return config.BrokerNATS
}

// Close shuts the server down and waits for it to exit.
func (s *NATSServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	s.server.Shutdown()
	s.server.WaitForShutdown()
	s.server = nil
	return nil
}

// natsLogger routes nats-server logging into slog.
type natsLogger struct {
	logger *slog.Logger
}

func (l *natsLogger) Noticef(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.Bool("fatal", true))
}

func (l *natsLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Tracef(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
