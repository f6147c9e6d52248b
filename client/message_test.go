// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundMessage(t *testing.T) {
	body := []byte("0123456789")
	m := NewInboundMessage("id-1", "random.topic", body)

	assert.Equal(t, "id-1", m.ID())
	assert.Equal(t, "random.topic", m.Topic())

	n, err := m.BodyLength()
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)

	buf := make([]byte, 4)
	read, err := m.ReadBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, read)
	assert.Equal(t, []byte("0123"), buf)

	rest := make([]byte, 16)
	read, err = m.ReadBytes(rest)
	require.NoError(t, err)
	assert.Equal(t, 6, read)
	assert.Equal(t, []byte("456789"), rest[:read])

	read, err = m.ReadBytes(rest)
	assert.Equal(t, 0, read)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadBody(t *testing.T) {
	body := make([]byte, 1024)
	for i := range body {
		body[i] = byte(i)
	}

	m := NewInboundMessage("id", "t", body)
	out := make([]byte, len(body))
	require.NoError(t, ReadBody(m, out))
	assert.Equal(t, body, out)

	t.Run("short body", func(t *testing.T) {
		m := NewInboundMessage("id", "t", body[:10])
		err := ReadBody(m, make([]byte, 20))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("empty buffer", func(t *testing.T) {
		m := NewInboundMessage("id", "t", nil)
		assert.NoError(t, ReadBody(m, nil))
	})

	t.Run("read error", func(t *testing.T) {
		m := &chunkedMessage{chunks: [][]byte{[]byte("ab")}, err: errors.New("body gone")}
		err := ReadBody(m, make([]byte, 4))
		assert.EqualError(t, err, "body gone")
	})

	t.Run("chunked reads", func(t *testing.T) {
		m := &chunkedMessage{chunks: [][]byte{[]byte("ab"), []byte("cd")}}
		out := make([]byte, 4)
		require.NoError(t, ReadBody(m, out))
		assert.Equal(t, []byte("abcd"), out)
	})
}

// chunkedMessage hands out its body in fixed chunks, then err (or io.EOF).
type chunkedMessage struct {
	chunks [][]byte
	err    error
}

func (m *chunkedMessage) ID() string    { return "chunked" }
func (m *chunkedMessage) Topic() string { return "t" }

func (m *chunkedMessage) BodyLength() (int64, error) {
	var n int64
	for _, c := range m.chunks {
		n += int64(len(c))
	}
	return n, nil
}

func (m *chunkedMessage) ReadBytes(p []byte) (int, error) {
	if len(m.chunks) == 0 {
		if m.err != nil {
			return 0, m.err
		}
		return 0, io.EOF
	}
	n := copy(p, m.chunks[0])
	m.chunks = m.chunks[1:]
	return n, nil
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		err    error
	}{
		{name: "valid", modify: func(o *Options) {}},
		{name: "no url", modify: func(o *Options) { o.URL = "" }, err: ErrNoURL},
		{name: "no client id", modify: func(o *Options) { o.ClientID = "" }, err: ErrEmptyClientID},
		{name: "bad qos", modify: func(o *Options) { o.QoS = 3 }, err: ErrInvalidQoS},
		{name: "unknown type", modify: func(o *Options) { o.Type = "stomp" }, err: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions().SetURL("tcp://localhost:1883").SetClientID("c1")
			tt.modify(opts)
			err := opts.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
