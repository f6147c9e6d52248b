// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type mqttConn struct {
	opts   *Options
	client mqtt.Client
	logger *slog.Logger

	// lost is closed when the broker drops the connection; lostErr is set first.
	lost     chan struct{}
	lostOnce sync.Once
	lostErr  error
}

var _ Conn = (*mqttConn)(nil)

func dialMQTT(ctx context.Context, opts *Options) (Conn, error) {
	logger := opts.logger().With(slog.String("client_id", opts.ClientID))
	conn := &mqttConn{
		opts:   opts,
		logger: logger,
		lost:   make(chan struct{}),
	}

	po := mqtt.NewClientOptions().
		AddBroker(opts.URL).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetProtocolVersion(4).
		SetAutoReconnect(false).
		SetConnectTimeout(opts.timeout()).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("connection lost", slog.String("error", err.Error()))
			conn.markLost(err)
		})

	conn.client = mqtt.NewClient(po)
	if err := wait(ctx, conn.client.Connect(), opts.timeout()); err != nil {
		if errors.Is(err, ErrTimeout) {
			err = ErrConnectTimeout
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.URL, err)
	}

	return conn, nil
}

func (c *mqttConn) markLost(err error) {
	c.lostOnce.Do(func() {
		c.lostErr = err
		close(c.lost)
	})
}

func (c *mqttConn) NewProducer(topic string) (Producer, error) {
	if err := validateMQTTTopic(topic); err != nil {
		return nil, err
	}
	return &mqttProducer{conn: c, topic: topic}, nil
}

func (c *mqttConn) NewConsumer(ctx context.Context, topic string) (Consumer, error) {
	if err := validateMQTTTopic(topic); err != nil {
		return nil, err
	}
	if !c.client.IsConnectionOpen() {
		return nil, ErrNotConnected
	}

	cons := &mqttConsumer{
		conn:   c,
		topic:  topic,
		filter: topic + "/+",
		msgs:   make(chan mqtt.Message, c.opts.buffer()),
		done:   make(chan struct{}),
	}

	tok := c.client.Subscribe(cons.filter, c.opts.QoS, cons.handle)
	if err := wait(ctx, tok, c.opts.timeout()); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cons.filter, err)
	}
	return cons, nil
}

func (c *mqttConn) Close() error {
	if c.client.IsConnected() {
		c.client.Disconnect(uint(DefaultDisconnectQuiet.Milliseconds()))
	}
	return nil
}

// The message ID travels as the last topic level.
type mqttProducer struct {
	conn  *mqttConn
	topic string
}

func (p *mqttProducer) Send(ctx context.Context, body []byte) (string, error) {
	if !p.conn.client.IsConnectionOpen() {
		return "", ErrNotConnected
	}

	id := uuid.NewString()
	tok := p.conn.client.Publish(p.topic+"/"+id, p.conn.opts.QoS, false, body)
	if err := wait(ctx, tok, p.conn.opts.timeout()); err != nil {
		return "", fmt.Errorf("failed to publish message %s: %w", id, err)
	}
	return id, nil
}

func (p *mqttProducer) Close() error {
	return nil
}

type mqttConsumer struct {
	conn   *mqttConn
	topic  string
	filter string
	msgs   chan mqtt.Message
	done   chan struct{}
	once   sync.Once
}

func (c *mqttConsumer) handle(_ mqtt.Client, msg mqtt.Message) {
	select {
	case c.msgs <- msg:
	case <-c.done:
	}
}

func (c *mqttConsumer) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-c.msgs:
		id := strings.TrimPrefix(msg.Topic(), c.topic+"/")
		return NewInboundMessage(id, c.topic, msg.Payload()), nil
	case <-c.conn.lost:
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, c.conn.lostErr)
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *mqttConsumer) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if !c.conn.client.IsConnectionOpen() {
			return
		}
		err = wait(context.Background(), c.conn.client.Unsubscribe(c.filter), c.conn.opts.timeout())
	})
	return err
}

func validateMQTTTopic(topic string) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return nil
}
