// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"log/slog"
	"time"

	"github.com/absmach/bodyrace/config"
)

// Default values.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultDisconnectQuiet = 250 * time.Millisecond
	DefaultMessageChanSize = 256
	DefaultQoS             = 1
)

// Options configures a broker connection.
type Options struct {
	Type           string        // mqtt or nats
	URL            string        // Broker URL (tcp://host:port, nats://host:port)
	ClientID       string        // Client identifier
	ConnectTimeout time.Duration // Timeout for connect, subscribe and publish acknowledgements
	QoS            byte          // MQTT QoS for publish and subscribe
	Buffer         int           // Received messages buffered ahead of Receive
	Logger         *slog.Logger
}

// NewOptions creates Options with sensible defaults.
func NewOptions() *Options {
	return &Options{
		Type:           config.BrokerMQTT,
		ConnectTimeout: DefaultConnectTimeout,
		QoS:            DefaultQoS,
		Buffer:         DefaultMessageChanSize,
	}
}

// FromConfig derives connection options for clientID from the run configuration.
func FromConfig(cfg *config.Config, clientID string) *Options {
	return NewOptions().
		SetType(cfg.Broker.Type).
		SetURL(cfg.Broker.URL).
		SetClientID(clientID).
		SetConnectTimeout(cfg.Client.ConnectTimeout).
		SetQoS(cfg.Client.QoS).
		SetBuffer(cfg.Consumer.Buffer)
}

// SetType selects the client implementation.
func (o *Options) SetType(typ string) *Options {
	o.Type = typ
	return o
}

// SetURL sets the broker URL.
func (o *Options) SetURL(url string) *Options {
	o.URL = url
	return o
}

// SetClientID sets the client identifier.
func (o *Options) SetClientID(id string) *Options {
	o.ClientID = id
	return o
}

// SetConnectTimeout sets the connect and acknowledgement timeout.
func (o *Options) SetConnectTimeout(d time.Duration) *Options {
	o.ConnectTimeout = d
	return o
}

// SetQoS sets the MQTT quality of service.
func (o *Options) SetQoS(qos byte) *Options {
	o.QoS = qos
	return o
}

// SetBuffer sets the receive buffer size.
func (o *Options) SetBuffer(n int) *Options {
	o.Buffer = n
	return o
}

// SetLogger sets the logger used for connection events.
func (o *Options) SetLogger(l *slog.Logger) *Options {
	o.Logger = l
	return o
}

// Validate checks the options for errors.
func (o *Options) Validate() error {
	if o.URL == "" {
		return ErrNoURL
	}
	if o.ClientID == "" {
		return ErrEmptyClientID
	}
	if o.QoS > 2 {
		return ErrInvalidQoS
	}
	switch o.Type {
	case config.BrokerMQTT, config.BrokerNATS:
	default:
		return ErrUnknownType
	}
	return nil
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Options) timeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.ConnectTimeout
}

func (o *Options) buffer() int {
	if o.Buffer <= 0 {
		return DefaultMessageChanSize
	}
	return o.Buffer
}
