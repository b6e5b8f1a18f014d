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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	notices []string
	alerts  []string
	mu      sync.Mutex
}

func (n *recordingNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, message)
}

func (n *recordingNotifier) Alert(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, message)
}

func (n *recordingNotifier) counts() (notices, alerts int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices), len(n.alerts)
}

func TestOutboundQueue_FIFO(t *testing.T) {
	t.Parallel()

	q := newOutboundQueue(3, &recordingNotifier{})
	for i := byte(1); i <= 3; i++ {
		require.True(t, q.push([]byte{i}))
	}
	assert.Equal(t, 3, q.size())

	for i := byte(1); i <= 3; i++ {
		msg, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, []byte{i}, msg)
	}
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestOutboundQueue_OneAlertPerFullCycle(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	q := newOutboundQueue(2, notifier)

	require.True(t, q.push([]byte{1}))
	require.True(t, q.push([]byte{2}))

	// Repeated overflow raises a single alert
	assert.False(t, q.push([]byte{3}))
	assert.False(t, q.push([]byte{4}))
	assert.False(t, q.push([]byte{5}))

	notices, alerts := notifier.counts()
	assert.Equal(t, 0, notices)
	assert.Equal(t, 1, alerts)
	assert.Equal(t, QueueFullMessage, notifier.alerts[0])

	// Next accepted push recovers
	_, ok := q.pop()
	require.True(t, ok)
	require.True(t, q.push([]byte{6}))

	notices, alerts = notifier.counts()
	assert.Equal(t, 1, notices)
	assert.Equal(t, 1, alerts)
	assert.Equal(t, QueueRecoveredMessage, notifier.notices[0])

	// A second overflow cycle alerts again
	assert.False(t, q.push([]byte{7}))
	_, alerts = notifier.counts()
	assert.Equal(t, 2, alerts)
}

func TestOutboundQueue_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	q := newOutboundQueue(50, notifier)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if q.push([]byte{byte(j)}) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, accepted)
	assert.Equal(t, 50, q.size())
	_, alerts := notifier.counts()
	assert.Equal(t, 1, alerts)
}

func TestLink_QueueFullNotifiesOperator(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	port := backpackPort(t, "1.0")
	link := startConnected(t, port, WithQueueSize(2), WithNotifier(notifier), WithPacing(waitFor*5, 0))

	// Let the consumer take one message into its pacing sleep.
	require.True(t, link.Enqueue([]byte{0}))
	require.Eventually(t, func() bool { return link.QueueLength() == 0 }, waitFor, tick)

	accepted := 0
	for i := 1; i <= 5; i++ {
		if link.Enqueue([]byte{byte(i)}) {
			accepted++
		}
	}

	assert.Equal(t, 2, accepted)
	_, alerts := notifier.counts()
	assert.Equal(t, 1, alerts)
}
