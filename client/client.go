// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package client wraps the MQTT and NATS client libraries behind a
// connection / producer / consumer model with byte-body messages.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/absmach/bodyrace/config"
)

// Conn is a connection to the broker. Producers and consumers created from a
// Conn share its underlying session.
type Conn interface {
	NewProducer(topic string) (Producer, error)
	NewConsumer(ctx context.Context, topic string) (Consumer, error)
	Close() error
}

// Producer publishes messages to one topic.
type Producer interface {
	// Send publishes a new message wrapping body and returns its ID.
	Send(ctx context.Context, body []byte) (string, error)
	Close() error
}

// Consumer receives messages from one topic.
type Consumer interface {
	// Receive blocks until the next message arrives, ctx is done or the
	// consumer is closed.
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Dial connects to the broker with the implementation selected by opts.Type.
func Dial(ctx context.Context, opts *Options) (Conn, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch opts.Type {
	case config.BrokerMQTT:
		return dialMQTT(ctx, opts)
	case config.BrokerNATS:
		return dialNATS(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, opts.Type)
	}
}

// waiter is the completion handle shared by paho tokens.
type waiter interface {
	Done() <-chan struct{}
	Error() error
}

func wait(ctx context.Context, w waiter, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.Done():
		return w.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
