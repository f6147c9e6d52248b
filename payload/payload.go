// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package payload builds and decodes the serialized integer sequence carried in
// every message body.
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// ElementWidth is the width of one encoded sequence element in bytes.
const ElementWidth = 4

var ErrEmpty = errors.New("empty payload")

// WriteExt makes byte slices encode as msgpack bin and strings as str, so the
// two stay distinguishable on decode.
var handle = &codec.MsgpackHandle{WriteExt: true}

// Sequence returns the structured value behind a payload of n elements.
func Sequence(n int) []int32 {
	seq := make([]int32, n)
	for i := range seq {
		seq[i] = int32(i)
	}
	return seq
}

// EncodedSize returns the exact length of Generate(approxBytes): the
// element bytes plus the msgpack bin header.
func EncodedSize(approxBytes int) int {
	n := (approxBytes / ElementWidth) * ElementWidth
	switch {
	case n < 1<<8:
		return n + 2
	case n < 1<<16:
		return n + 3
	default:
		return n + 5
	}
}

// Generate serializes a sequence of approxBytes/ElementWidth integers as a
// msgpack bin of big-endian int32 values. Every element takes exactly
// ElementWidth bytes, so the result is within a few header bytes of
// approxBytes.
func Generate(approxBytes int) ([]byte, error) {
	if approxBytes < ElementWidth {
		return nil, fmt.Errorf("payload size %d is smaller than one element", approxBytes)
	}
	if approxBytes/ElementWidth > math.MaxInt32 {
		return nil, fmt.Errorf("payload size %d is too large", approxBytes)
	}

	seq := Sequence(approxBytes / ElementWidth)
	raw := make([]byte, len(seq)*ElementWidth)
	for i, v := range seq {
		binary.BigEndian.PutUint32(raw[i*ElementWidth:], uint32(v))
	}

	out := make([]byte, 0, EncodedSize(approxBytes))
	if err := codec.NewEncoderBytes(&out, handle).Encode(raw); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// Decode reconstructs the value serialized in b without a type hint.
func Decode(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}

	var v any
	if err := codec.NewDecoderBytes(b, handle).Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return v, nil
}

// AsSequence reports whether v has the shape of a decoded sequence and
// returns it as []int32.
func AsSequence(v any) ([]int32, bool) {
	switch s := v.(type) {
	case []int32:
		return s, true
	case []byte:
		if len(s) == 0 || len(s)%ElementWidth != 0 {
			return nil, false
		}
		seq := make([]int32, len(s)/ElementWidth)
		for i := range seq {
			seq[i] = int32(binary.BigEndian.Uint32(s[i*ElementWidth:]))
		}
		return seq, true
	default:
		return nil, false
	}
}

// Describe renders a decoded value for a log line without dumping large
// collections.
func Describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case []any:
		return fmt.Sprintf("%T(len=%d)", x, len(x))
	case map[any]any:
		return fmt.Sprintf("%T(len=%d)", x, len(x))
	case []byte:
		return fmt.Sprintf("%T(len=%d)", x, len(x))
	case string:
		if len(x) > 64 {
			return fmt.Sprintf("string(len=%d)", len(x))
		}
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%T(%v)", x, x)
	}
}
