// go-elrsbackpack
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-elrsbackpack.
//
// go-elrsbackpack is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-elrsbackpack is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-elrsbackpack; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package race

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Pool sizing defaults
const (
	DefaultWorkers = 16
	DefaultBacklog = 256
)

// ErrPoolStarted is returned by a second Start.
var ErrPoolStarted = errors.New("pool already started")

// Task is one unit of per-pilot work. ctx ends when the pool stops.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of workers. Submit never blocks: when the
// backlog is full the task is dropped and logged.
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   chan Task
	workers int
	wg      sync.WaitGroup
	pending sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewPool creates a pool with the given worker count and backlog. Values
// below one select the defaults.
func NewPool(workers, backlog int) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if backlog < 1 {
		backlog = DefaultBacklog
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan Task, backlog),
	}
}

// Start launches the workers. Tasks submitted earlier are run once started.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolStarted
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return nil
}

// Submit queues task and reports whether it was accepted.
func (p *Pool) Submit(name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		return true
	default:
		p.pending.Done()
		log.Warn().Str("task", name).Int("backlog", cap(p.tasks)).Msg("worker pool full, dropping task")
		return false
	}
}

// Wait blocks until every accepted task has finished or been discarded.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Stop cancels running tasks, discards queued ones and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if started {
		p.cancel()
		p.wg.Wait()
	}

	for {
		select {
		case <-p.tasks:
			p.pending.Done()
		default:
			return
		}
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			p.run(task)
		}
	}
}

func (p *Pool) run(task Task) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("race task panicked")
		}
	}()
	task(p.ctx)
}
