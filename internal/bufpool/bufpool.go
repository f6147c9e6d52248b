// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package bufpool recycles message body buffers.
package bufpool

import "sync"

const (
	initialCap   = 64 * 1024
	maxPooledCap = 16 * 1024 * 1024
)

var pool = sync.Pool{New: func() any {
	b := make([]byte, 0, initialCap)
	return &b
}}

// Get returns a buffer of length n. Its contents are unspecified.
func Get(n int) *[]byte {
	bp := pool.Get().(*[]byte)
	if cap(*bp) < n {
		*bp = make([]byte, n)
		return bp
	}
	*bp = (*bp)[:n]
	return bp
}

// Put returns bp to the pool. The caller must not use it afterwards.
func Put(bp *[]byte) {
	if bp == nil || cap(*bp) > maxPooledCap {
		return
	}
	*bp = (*bp)[:0]
	pool.Put(bp)
}
