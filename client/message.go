// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package client

import "io"

// Message is a received message envelope.
type Message interface {
	// ID returns the identifier assigned when the message was sent, or ""
	// when the transport did not carry one.
	ID() string
	Topic() string
}

// BytesMessage is a message whose body is an opaque byte stream.
type BytesMessage interface {
	Message

	// BodyLength reports the body size in bytes.
	BodyLength() (int64, error)

	// ReadBytes reads the next part of the body into p. It returns io.EOF
	// once the body is drained.
	ReadBytes(p []byte) (int, error)
}

// InboundMessage is the BytesMessage produced by every Consumer.
// Reads advance a cursor, so it is not safe for concurrent use.
type InboundMessage struct {
	id    string
	topic string
	body  []byte
	off   int
}

var _ BytesMessage = (*InboundMessage)(nil)

// NewInboundMessage wraps a received body.
func NewInboundMessage(id, topic string, body []byte) *InboundMessage {
	return &InboundMessage{
		id:    id,
		topic: topic,
		body:  body,
	}
}

func (m *InboundMessage) ID() string {
	return m.id
}

func (m *InboundMessage) Topic() string {
	return m.topic
}

func (m *InboundMessage) BodyLength() (int64, error) {
	return int64(len(m.body)), nil
}

func (m *InboundMessage) ReadBytes(p []byte) (int, error) {
	if m.off >= len(m.body) {
		return 0, io.EOF
	}
	n := copy(p, m.body[m.off:])
	m.off += n
	return n, nil
}

// ReadBody reads the whole remaining body of m into p, which must be sized to
// the body length.
func ReadBody(m BytesMessage, p []byte) error {
	read := 0
	for read < len(p) {
		n, err := m.ReadBytes(p[read:])
		read += n
		if err == io.EOF {
			if read < len(p) {
				return io.ErrUnexpectedEOF
			}
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrNoProgress
		}
	}
	return nil
}
