// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package repro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrPoolClosed = errors.New("pool closed")

// Task is a unit of work run by a pool worker.
type Task func()

// Pool runs tasks on a fixed set of workers fed by an unbounded FIFO queue.
// Submit never blocks.
type Pool struct {
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool

	wg sync.WaitGroup
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger, metrics *Metrics) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		logger:  logger,
		metrics: metrics,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// Submit queues t for execution.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, t)
	p.mu.Unlock()

	p.metrics.PoolDepth(context.Background(), 1)
	p.cond.Signal()
	return nil
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops accepting tasks, runs the queued ones and waits for workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.metrics.PoolDepth(context.Background(), -1)
		p.run(id, t)
	}
}

func (p *Pool) run(id int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				slog.Int("worker", id),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	t()
}
