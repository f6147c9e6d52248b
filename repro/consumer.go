// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package repro

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/absmach/bodyrace/client"
	"github.com/absmach/bodyrace/config"
)

// ConsumerConfig holds consumer loop settings.
type ConsumerConfig struct {
	Topic    string
	Dispatch string // config.DispatchWorker or config.DispatchInline
	Workers  int
}

// Consumer receives messages one at a time and dispatches each to the
// evaluator.
type Consumer struct {
	cfg       ConsumerConfig
	opts      *client.Options
	evaluator *Evaluator
	logger    *slog.Logger
	metrics   *Metrics

	ready     chan struct{}
	readyOnce sync.Once
}

// NewConsumer creates a consumer loop connecting with opts.
func NewConsumer(cfg ConsumerConfig, opts *client.Options, evaluator *Evaluator, logger *slog.Logger, metrics *Metrics) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:       cfg,
		opts:      opts,
		evaluator: evaluator,
		logger:    logger.With(slog.String("loop", "consumer")),
		metrics:   metrics,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the consumer is subscribed.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

// Run connects once, then blocks on Receive until ctx is done. In worker
// dispatch the received message is queued for evaluation and the loop goes
// straight back to Receive; in inline dispatch it is evaluated first.
// Any receive failure is logged and ends the loop; queued evaluations still run.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.run(ctx)
	if err != nil && ctx.Err() == nil {
		c.logger.Error("consumer loop terminated", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (c *Consumer) run(ctx context.Context) error {
	conn, err := client.Dial(ctx, c.opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	consumer, err := conn.NewConsumer(ctx, c.cfg.Topic)
	if err != nil {
		return err
	}
	defer consumer.Close()

	var pool *Pool
	if c.cfg.Dispatch != config.DispatchInline {
		pool = NewPool(c.cfg.Workers, c.logger, c.metrics)
		defer pool.Close()
	}

	c.logger.Info("consumer subscribed",
		slog.String("topic", c.cfg.Topic),
		slog.String("dispatch", c.dispatchMode()))
	c.readyOnce.Do(func() { close(c.ready) })

	for {
		msg, err := consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return nil
			}
			return err
		}

		c.metrics.RecordReceived(ctx)
		c.logger.Info("message received", slog.String("msg_id", msg.ID()))

		if pool == nil {
			c.evaluator.Evaluate(ctx, msg)
			continue
		}

		evalCtx := context.WithoutCancel(ctx)
		if err := pool.Submit(func() { c.evaluator.Evaluate(evalCtx, msg) }); err != nil {
			return err
		}
	}
}

func (c *Consumer) dispatchMode() string {
	if c.cfg.Dispatch == config.DispatchInline {
		return config.DispatchInline
	}
	return config.DispatchWorker
}
