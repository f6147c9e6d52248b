// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package repro

import (
	"context"
	"errors"
	"testing"

	"github.com/absmach/bodyrace/client"
	"github.com/absmach/bodyrace/payload"
	"github.com/absmach/bodyrace/testutil"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainMessage carries no body accessors.
type plainMessage struct{ id string }

func (m plainMessage) ID() string    { return m.id }
func (m plainMessage) Topic() string { return "random.topic" }

// brokenMessage fails or panics on body access.
type brokenMessage struct {
	lengthErr error
	panicRead bool
}

func (m *brokenMessage) ID() string    { return "broken" }
func (m *brokenMessage) Topic() string { return "random.topic" }

func (m *brokenMessage) BodyLength() (int64, error) {
	if m.lengthErr != nil {
		return 0, m.lengthErr
	}
	return 16, nil
}

func (m *brokenMessage) ReadBytes([]byte) (int, error) {
	if m.panicRead {
		panic("body buffer released")
	}
	return 0, errors.New("stream closed")
}

func msgpackBody(t *testing.T, v any) []byte {
	t.Helper()
	var b []byte
	require.NoError(t, codec.NewEncoderBytes(&b, &codec.MsgpackHandle{}).Encode(v))
	return b
}

func TestEvaluateSuccess(t *testing.T) {
	capture, logger := testutil.NewLogCapture()

	var observed []Result
	e := NewEvaluator(logger, nil, 100*1024, func(r Result) { observed = append(observed, r) })

	body, err := payload.Generate(8 * 1024)
	require.NoError(t, err)

	res := e.Evaluate(context.Background(), client.NewInboundMessage("m-1", "random.topic", body))
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "m-1", res.ID)
	assert.Equal(t, int64(len(body)), res.Length)
	assert.NoError(t, res.Err)

	seq, ok := payload.AsSequence(res.Value)
	require.True(t, ok)
	assert.Equal(t, payload.Sequence(2048), seq)

	require.Len(t, observed, 1)
	assert.Equal(t, res.Outcome, observed[0].Outcome)

	lengthRecs := capture.Messages("message body length")
	require.Len(t, lengthRecs, 1)
	assert.Equal(t, "m-1", lengthRecs[0].Attrs["msg_id"])
	assert.Equal(t, "false", lengthRecs[0].Attrs["large"])

	okRecs := capture.Messages("message read successfully")
	require.Len(t, okRecs, 1)
	assert.Equal(t, "m-1", okRecs[0].Attrs["msg_id"])
}

func TestEvaluateLargeClassification(t *testing.T) {
	capture, logger := testutil.NewLogCapture()
	e := NewEvaluator(logger, nil, 1024, nil)

	body, err := payload.Generate(8 * 1024)
	require.NoError(t, err)

	res := e.Evaluate(context.Background(), client.NewInboundMessage("m-big", "random.topic", body))
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	recs := capture.Messages("message body length")
	require.Len(t, recs, 1)
	assert.Equal(t, "true", recs[0].Attrs["large"])
}

func TestEvaluateMismatch(t *testing.T) {
	capture, logger := testutil.NewLogCapture()
	e := NewEvaluator(logger, nil, 1024, nil)

	body := msgpackBody(t, map[string]int{"a": 1})
	res := e.Evaluate(context.Background(), client.NewInboundMessage("m-2", "random.topic", body))

	assert.Equal(t, OutcomeMismatch, res.Outcome)
	assert.NoError(t, res.Err)

	recs := capture.Messages("message read as unexpected value")
	require.Len(t, recs, 1)
	assert.Equal(t, "m-2", recs[0].Attrs["msg_id"])
	assert.NotEmpty(t, recs[0].Attrs["value"])
}

func TestEvaluateErrors(t *testing.T) {
	body, err := payload.Generate(4096)
	require.NoError(t, err)

	tests := []struct {
		name    string
		msg     client.Message
		outcome Outcome
		logMsg  string
	}{
		{
			name:    "truncated body",
			msg:     client.NewInboundMessage("m-3", "random.topic", body[:len(body)/2]),
			outcome: OutcomeError,
			logMsg:  "message evaluation failed",
		},
		{
			name:    "empty body",
			msg:     client.NewInboundMessage("m-4", "random.topic", nil),
			outcome: OutcomeError,
			logMsg:  "message evaluation failed",
		},
		{
			name:    "id unavailable",
			msg:     client.NewInboundMessage("", "random.topic", []byte{0xc1}),
			outcome: OutcomeError,
			logMsg:  "message evaluation failed, id unavailable",
		},
		{
			name:    "body length error",
			msg:     &brokenMessage{lengthErr: errors.New("session closed")},
			outcome: OutcomeError,
			logMsg:  "message evaluation failed",
		},
		{
			name:    "read error",
			msg:     &brokenMessage{},
			outcome: OutcomeError,
			logMsg:  "message evaluation failed",
		},
		{
			name:    "read panics",
			msg:     &brokenMessage{panicRead: true},
			outcome: OutcomeError,
			logMsg:  "message evaluation failed",
		},
		{
			name:    "not a bytes message",
			msg:     plainMessage{id: "m-5"},
			outcome: OutcomeUnexpectedType,
			logMsg:  "unexpected message type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture, logger := testutil.NewLogCapture()
			e := NewEvaluator(logger, nil, 1024, nil)

			res := e.Evaluate(context.Background(), tt.msg)
			assert.Equal(t, tt.outcome, res.Outcome)
			if tt.outcome == OutcomeError {
				assert.Error(t, res.Err)
			}

			recs := capture.Messages(tt.logMsg)
			require.Len(t, recs, 1)
			if id := tt.msg.ID(); id != "" {
				assert.Equal(t, id, recs[0].Attrs["msg_id"])
			} else {
				assert.NotContains(t, recs[0].Attrs, "msg_id")
			}
			assert.Empty(t, capture.Messages("message read successfully"))
		})
	}
}
