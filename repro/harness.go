// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package repro runs the producer and consumer loops that reproduce an
// off-goroutine message body read.
package repro

import (
	"context"
	"log/slog"

	"github.com/absmach/bodyrace/client"
	"github.com/absmach/bodyrace/config"
	"golang.org/x/sync/errgroup"
)

// Option customizes a Harness.
type Option func(*Harness)

// WithMetrics records loop and evaluation metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// WithObserver passes every evaluation Result to fn.
func WithObserver(fn func(Result)) Option {
	return func(h *Harness) {
		h.observe = fn
	}
}

// Harness wires a producer and a consumer on the same topic.
type Harness struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *Metrics
	observe func(Result)

	producer *Producer
	consumer *Consumer
}

// New builds a harness from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Harness {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Harness{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	evaluator := NewEvaluator(logger.With(slog.String("loop", "evaluator")), h.metrics, cfg.Broker.LargeMessageThreshold, h.observe)

	h.producer = NewProducer(ProducerConfig{
		Topic:          cfg.Topic.Name,
		MessageBytes:   cfg.Producer.MessageBytes,
		Interval:       cfg.Producer.Interval,
		LargeThreshold: cfg.Broker.LargeMessageThreshold,
	}, client.FromConfig(cfg, cfg.Producer.ClientID).SetLogger(logger), logger, h.metrics)

	h.consumer = NewConsumer(ConsumerConfig{
		Topic:    cfg.Topic.Name,
		Dispatch: cfg.Consumer.Dispatch,
		Workers:  cfg.Consumer.Workers,
	}, client.FromConfig(cfg, cfg.Consumer.ClientID).SetLogger(logger), evaluator, logger, h.metrics)

	return h
}

// Run starts the consumer, then the producer once the consumer is subscribed
// (or has failed), and returns when both loops have ended. A failing loop does
// not stop the other one. The returned error is the first loop failure.
func (h *Harness) Run(ctx context.Context) error {
	var g errgroup.Group

	consumerDone := make(chan struct{})
	g.Go(func() error {
		defer close(consumerDone)
		return h.consumer.Run(ctx)
	})

	select {
	case <-h.consumer.Ready():
	case <-consumerDone:
	case <-ctx.Done():
		return g.Wait()
	}

	g.Go(func() error {
		return h.producer.Run(ctx)
	})

	return g.Wait()
}
