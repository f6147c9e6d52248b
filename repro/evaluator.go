// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package repro

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/absmach/bodyrace/client"
	"github.com/absmach/bodyrace/internal/bufpool"
	"github.com/absmach/bodyrace/payload"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome classifies one evaluation.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeMismatch       Outcome = "mismatch"
	OutcomeError          Outcome = "error"
	OutcomeUnexpectedType Outcome = "unexpected_type"
)

// Result is the outcome of evaluating one message.
type Result struct {
	ID      string
	Outcome Outcome
	Length  int64
	Value   any
	Err     error
}

// Evaluator reads a received message body and reconstructs the payload.
type Evaluator struct {
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	threshold int
	observe   func(Result)
}

// NewEvaluator creates an evaluator. threshold is the large-message size used
// for log classification; observe, when non-nil, receives every Result.
func NewEvaluator(logger *slog.Logger, metrics *Metrics, threshold int, observe func(Result)) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer(instrumentationName),
		threshold: threshold,
		observe:   observe,
	}
}

// Evaluate reads msg and logs whether its body decodes to the expected
// sequence. It never panics on a bad message and never returns an error;
// failures are reported in the Result.
func (e *Evaluator) Evaluate(ctx context.Context, msg client.Message) Result {
	res := e.evaluate(ctx, msg)

	e.metrics.RecordOutcome(ctx, res)
	if e.observe != nil {
		e.observe(res)
	}
	return res
}

func (e *Evaluator) evaluate(ctx context.Context, msg client.Message) (res Result) {
	id := msg.ID()
	res.ID = id

	_, span := e.tracer.Start(ctx, "evaluate", trace.WithAttributes(
		attribute.String("messaging.message.id", id),
	))
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
	}()

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeError
			res.Err = fmt.Errorf("evaluation panicked: %v", r)
			e.logFailure(id, res.Err)
		}
	}()

	bm, ok := msg.(client.BytesMessage)
	if !ok {
		res.Outcome = OutcomeUnexpectedType
		e.logger.Error("unexpected message type",
			slog.String("msg_id", id),
			slog.String("type", fmt.Sprintf("%T", msg)))
		return res
	}

	length, err := bm.BodyLength()
	if err != nil {
		return e.fail(res, fmt.Errorf("failed to get body length: %w", err))
	}
	if length < 0 {
		return e.fail(res, fmt.Errorf("invalid body length %d", length))
	}
	res.Length = length

	bp := bufpool.Get(int(length))
	defer bufpool.Put(bp)
	buf := *bp
	e.logger.Info("message body length",
		slog.String("msg_id", id),
		slog.Int64("bytes", length),
		slog.Bool("large", length > int64(e.threshold)))

	if err := client.ReadBody(bm, buf); err != nil {
		return e.fail(res, fmt.Errorf("failed to read body: %w", err))
	}

	v, err := payload.Decode(buf)
	if err != nil {
		return e.fail(res, err)
	}
	res.Value = v

	if _, ok := payload.AsSequence(v); ok {
		res.Outcome = OutcomeSuccess
		e.logger.Info("message read successfully", slog.String("msg_id", id))
		return res
	}

	res.Outcome = OutcomeMismatch
	e.logger.Warn("message read as unexpected value",
		slog.String("msg_id", id),
		slog.String("value", payload.Describe(v)))
	return res
}

func (e *Evaluator) fail(res Result, err error) Result {
	res.Outcome = OutcomeError
	res.Err = err
	e.logFailure(res.ID, err)
	return res
}

func (e *Evaluator) logFailure(id string, err error) {
	if id == "" {
		e.logger.Error("message evaluation failed, id unavailable", slog.String("error", err.Error()))
		return
	}
	e.logger.Error("message evaluation failed",
		slog.String("msg_id", id),
		slog.String("error", err.Error()))
}
