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

package backpack

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-elrsbackpack/msp"
)

// Link owns the serial connection to a backpack. A single connector
// goroutine discovers the device, then drains the outbound queue and polls
// for inbound frames until the link fails or is stopped.
//
// Thread Safety: Enqueue, Send, Flush, SetPacing, State and Stop are safe for
// concurrent use. The port itself is only touched by the connector goroutine.
type Link struct {
	notifier Notifier
	inbound  InboundHandler
	config   *Config
	opener   PortOpener
	lister   PortLister
	state    *stateManager
	queue    *outboundQueue
	cancel   context.CancelFunc
	done     chan struct{}
	version  atomic.Value
	pacing   pacing
	stopMu   sync.Mutex

	// pending counts accepted messages whose write has not been attempted,
	// including the one the connector holds during its pacing delay.
	pending atomic.Int64
	started atomic.Bool
}

// pacing guards the values a configuration reload may change while
// messages are in flight.
type pacing struct {
	delay  time.Duration
	repeat int
	mu     sync.Mutex
}

func (p *pacing) set(delay time.Duration, repeat int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = delay
	p.repeat = repeat
}

func (p *pacing) get() (time.Duration, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay, p.repeat
}

// NewLink creates a link in the Searching state. Call Start to run discovery.
func NewLink(opts ...Option) (*Link, error) {
	l := &Link{
		config:   DefaultConfig(),
		opener:   SerialOpener,
		lister:   SystemPorts,
		notifier: LogNotifier{},
		state:    newStateManager(),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	l.queue = newOutboundQueue(l.config.QueueSize, l.notifier)
	l.pacing.set(l.config.SendDelay, l.config.RepeatCount)
	return l, nil
}

// Start launches the connector goroutine. It returns immediately; observe
// State to learn the discovery outcome.
func (l *Link) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.stopMu.Lock()
	l.cancel = cancel
	l.stopMu.Unlock()

	go l.run(runCtx)
	return nil
}

// Stop ends the connector, closes the port and waits for the goroutine to exit.
func (l *Link) Stop() error {
	if !l.started.Load() {
		l.state.disconnect()
		return nil
	}

	l.stopMu.Lock()
	cancel := l.cancel
	l.stopMu.Unlock()
	if cancel != nil {
		cancel()
	}

	<-l.done
	return nil
}

// Done is closed when the connector goroutine has exited.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// State returns a snapshot of the connection state
func (l *Link) State() ConnectionState {
	return l.state.get()
}

// PortName returns the port the backpack was found on, if connected
func (l *Link) PortName() string {
	_, port := l.state.snapshot()
	return port
}

// Version returns the firmware version string reported during the handshake
func (l *Link) Version() string {
	if v, ok := l.version.Load().(string); ok {
		return v
	}
	return ""
}

// QueueLength returns the number of messages waiting to be written
func (l *Link) QueueLength() int {
	return l.queue.size()
}

// SetPacing updates the inter-message delay and OSD repeat count
func (l *Link) SetPacing(delay time.Duration, repeat int) {
	if delay < 0 {
		delay = 0
	}
	if repeat < 0 {
		repeat = 0
	}
	l.pacing.set(delay, repeat)
}

// Pacing returns the current inter-message delay and OSD repeat count
func (l *Link) Pacing() (delay time.Duration, repeat int) {
	return l.pacing.get()
}

// Enqueue offers an encoded frame to the outbound queue without blocking. It
// reports false when the link is not connected or the queue is full; in both
// cases the message is dropped.
func (l *Link) Enqueue(msg []byte) bool {
	if l.state.get() != StateConnected {
		return false
	}
	l.pending.Add(1)
	if !l.queue.push(msg) {
		l.pending.Add(-1)
		return false
	}
	return true
}

// Flush waits until a write has been attempted for every accepted message.
// It returns ErrLinkClosed when the link stops with messages
// still queued, and ctx's error when ctx ends first. Call it before Stop
// to keep queued frames from being dropped.
func (l *Link) Flush(ctx context.Context) error {
	interval := l.config.IdleInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if l.pending.Load() <= 0 {
			return nil
		}
		if l.state.get() != StateConnected {
			return fmt.Errorf("%w: %d messages not written", ErrLinkClosed, l.pending.Load())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
		case <-ticker.C:
		}
	}
}

// Send encodes and enqueues a frame. OSD content frames are enqueued
// RepeatCount extra times to survive drops on the wireless hop. Only
// encoding failures are returned.
func (l *Link) Send(frame msp.Frame) error {
	msg, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode frame %#04x: %w", frame.Function, err)
	}

	l.Enqueue(msg)
	if frame.Function == msp.FuncSetOSD {
		_, repeat := l.pacing.get()
		for i := 0; i < repeat; i++ {
			l.Enqueue(msg)
		}
	}
	return nil
}
