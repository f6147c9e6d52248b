// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package repro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/bodyrace/client"
	"github.com/absmach/bodyrace/payload"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProducerConfig holds producer loop settings.
type ProducerConfig struct {
	Topic          string
	MessageBytes   int
	Interval       time.Duration
	LargeThreshold int
}

// Producer publishes the shared payload on a fixed delay.
type Producer struct {
	cfg     ProducerConfig
	opts    *client.Options
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	dial    func(context.Context, *client.Options) (client.Conn, error)
}

// NewProducer creates a producer loop connecting with opts.
func NewProducer(cfg ProducerConfig, opts *client.Options, logger *slog.Logger, metrics *Metrics) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		cfg:     cfg,
		opts:    opts,
		logger:  logger.With(slog.String("loop", "producer")),
		metrics: metrics,
		tracer:  otel.Tracer(instrumentationName),
		dial:    client.Dial,
	}
}

// Run connects once, then sleeps Interval and sends the payload until ctx is
// done. Any failure is logged and ends the loop; there is no retry.
func (p *Producer) Run(ctx context.Context) error {
	err := p.run(ctx)
	if err != nil && ctx.Err() == nil {
		p.logger.Error("producer loop terminated", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (p *Producer) run(ctx context.Context) error {
	conn, err := p.dial(ctx, p.opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	producer, err := conn.NewProducer(p.cfg.Topic)
	if err != nil {
		return err
	}
	defer producer.Close()

	body, err := payload.Generate(p.cfg.MessageBytes)
	if err != nil {
		return err
	}
	large := len(body) > p.cfg.LargeThreshold
	p.logger.Info("messages will have fixed length",
		slog.Int("bytes", len(body)),
		slog.Bool("large", large),
		slog.String("topic", p.cfg.Topic))

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		id, err := p.send(ctx, producer, body)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			return err
		}

		p.metrics.RecordSent(ctx, large)
		p.logger.Info("message sent",
			slog.String("msg_id", id),
			slog.Int("bytes", len(body)),
			slog.Bool("large", large))

		timer.Reset(p.cfg.Interval)
	}
}

func (p *Producer) send(ctx context.Context, producer client.Producer, body []byte) (string, error) {
	ctx, span := p.tracer.Start(ctx, "send", trace.WithAttributes(
		attribute.String("messaging.destination.name", p.cfg.Topic),
		attribute.Int("messaging.message.body.size", len(body)),
	))
	defer span.End()

	id, err := producer.Send(ctx, body)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("send failed: %w", err)
	}
	span.SetAttributes(attribute.String("messaging.message.id", id))
	return id, nil
}
