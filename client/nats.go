// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type natsConn struct {
	opts   *Options
	nc     *nats.Conn
	logger *slog.Logger
}

var _ Conn = (*natsConn)(nil)

func dialNATS(_ context.Context, opts *Options) (Conn, error) {
	logger := opts.logger().With(slog.String("client_id", opts.ClientID))

	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.ClientID),
		nats.Timeout(opts.timeout()),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("connection lost", slog.String("error", err.Error()))
			}
		}),
	)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			err = ErrConnectTimeout
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.URL, err)
	}

	return &natsConn{
		opts:   opts,
		nc:     nc,
		logger: logger,
	}, nil
}

func (c *natsConn) NewProducer(topic string) (Producer, error) {
	if err := validateSubject(topic); err != nil {
		return nil, err
	}
	return &natsProducer{conn: c, subject: topic}, nil
}

func (c *natsConn) NewConsumer(_ context.Context, topic string) (Consumer, error) {
	if err := validateSubject(topic); err != nil {
		return nil, err
	}
	if !c.nc.IsConnected() {
		return nil, ErrNotConnected
	}

	sub, err := c.nc.SubscribeSync(topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	// The subscription must be registered on the server before the first send.
	if err := c.nc.FlushTimeout(c.opts.timeout()); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription to %s: %w", topic, err)
	}
	return &natsConsumer{sub: sub, subject: topic}, nil
}

func (c *natsConn) Close() error {
	c.nc.Close()
	return nil
}

// The message ID travels in the Nats-Msg-Id header.
type natsProducer struct {
	conn    *natsConn
	subject string
}

func (p *natsProducer) Send(ctx context.Context, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !p.conn.nc.IsConnected() {
		return "", ErrNotConnected
	}

	id := uuid.NewString()
	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, id)
	msg.Data = body

	if err := p.conn.nc.PublishMsg(msg); err != nil {
		return "", fmt.Errorf("failed to publish message %s: %w", id, err)
	}
	if err := p.conn.nc.FlushTimeout(p.conn.opts.timeout()); err != nil {
		return "", fmt.Errorf("failed to flush message %s: %w", id, err)
	}
	return id, nil
}

func (p *natsProducer) Close() error {
	return nil
}

type natsConsumer struct {
	sub     *nats.Subscription
	subject string
}

func (c *natsConsumer) Receive(ctx context.Context) (Message, error) {
	msg, err := c.sub.NextMsgWithContext(ctx)
	if err != nil {
		if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}

	var id string
	if msg.Header != nil {
		id = msg.Header.Get(nats.MsgIdHdr)
	}
	return NewInboundMessage(id, c.subject, msg.Data), nil
}

func (c *natsConsumer) Close() error {
	err := c.sub.Unsubscribe()
	if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

func validateSubject(subject string) error {
	if subject == "" || strings.ContainsAny(subject, "*> \t") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, subject)
	}
	return nil
}
