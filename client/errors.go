// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package client

import "errors"

// Client errors.
var (
	// Configuration errors.
	ErrNoURL         = errors.New("no broker URL configured")
	ErrEmptyClientID = errors.New("client ID cannot be empty")
	ErrUnknownType   = errors.New("unknown client type")
	ErrInvalidQoS    = errors.New("invalid QoS level (must be 0, 1, or 2)")

	// Connection errors.
	ErrNotConnected   = errors.New("client not connected")
	ErrConnectTimeout = errors.New("connection timeout")

	// Operation errors.
	ErrTimeout      = errors.New("operation timed out")
	ErrClosed       = errors.New("closed")
	ErrInvalidTopic = errors.New("invalid topic")
)
