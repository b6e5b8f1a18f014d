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
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasks(t *testing.T) {
	t.Parallel()

	pool := NewPool(4, 32)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		require.True(t, pool.Submit("count", func(context.Context) { ran.Add(1) }))
	}
	pool.Wait()
	assert.Equal(t, int32(20), ran.Load())

	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolStarted)
}

func TestPool_DropsWhenBacklogFull(t *testing.T) {
	t.Parallel()

	// Not started, so nothing drains the backlog
	pool := NewPool(1, 2)
	noop := func(context.Context) {}
	assert.True(t, pool.Submit("a", noop))
	assert.True(t, pool.Submit("b", noop))
	assert.False(t, pool.Submit("c", noop))

	pool.Stop()
	pool.Wait()
	assert.False(t, pool.Submit("d", noop))
}

func TestPool_StopCancelsRunningTasks(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, 1)
	require.NoError(t, pool.Start(context.Background()))

	started := make(chan struct{})
	var cancelled atomic.Bool
	require.True(t, pool.Submit("block", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	}))
	<-started

	pool.Stop()
	pool.Wait()
	assert.True(t, cancelled.Load())
}

func TestPool_RecoversPanics(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, 4)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	var ran atomic.Bool
	pool.Submit("panic", func(context.Context) { panic("boom") })
	pool.Submit("after", func(context.Context) { ran.Store(true) })
	pool.Wait()
	assert.True(t, ran.Load())
}

func TestNewPool_Defaults(t *testing.T) {
	t.Parallel()

	pool := NewPool(0, 0)
	assert.Equal(t, DefaultWorkers, pool.workers)
	assert.Equal(t, DefaultBacklog, cap(pool.tasks))
}
