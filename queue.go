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
	"sync"

	"github.com/rs/zerolog/log"
)

// Messages shown to the race director on queue backpressure.
const (
	QueueFullMessage      = "ERROR: ELRS Backpack not responding. Please reboot the server to attempt to reconnect."
	QueueRecoveredMessage = "ELRS Backpack has start responding again."
)

// Notifier presents messages to the operator. Implementations must not block
// for long: they are called from producer goroutines.
type Notifier interface {
	Notify(message string)
	Alert(message string)
}

// LogNotifier writes notifications to the global logger.
type LogNotifier struct{}

// Notify logs an informational message
func (LogNotifier) Notify(message string) {
	log.Info().Msg(message)
}

// Alert logs an error-level message
func (LogNotifier) Alert(message string) {
	log.Error().Msg(message)
}

// outboundQueue is a bounded FIFO of encoded frames with many producers and a
// single consumer. Overflow drops the message and raises one alert until the
// queue accepts a message again.
type outboundQueue struct {
	notifier Notifier
	items    chan []byte
	mu       sync.Mutex
	full     bool
}

func newOutboundQueue(size int, notifier Notifier) *outboundQueue {
	return &outboundQueue{
		items:    make(chan []byte, size),
		notifier: notifier,
	}
}

// push never blocks.
func (q *outboundQueue) push(msg []byte) bool {
	select {
	case q.items <- msg:
		q.setFull(false)
		return true
	default:
		q.setFull(true)
		return false
	}
}

// setFull flips the flag and notifies only on a transition.
func (q *outboundQueue) setFull(full bool) {
	q.mu.Lock()
	changed := q.full != full
	q.full = full
	q.mu.Unlock()

	if !changed {
		return
	}
	if full {
		log.Warn().Int("capacity", cap(q.items)).Msg("backpack queue full, dropping message")
		q.notifier.Alert(QueueFullMessage)
		return
	}
	q.notifier.Notify(QueueRecoveredMessage)
}

func (q *outboundQueue) pop() ([]byte, bool) {
	select {
	case msg := <-q.items:
		return msg, true
	default:
		return nil, false
	}
}

func (q *outboundQueue) size() int {
	return len(q.items)
}
