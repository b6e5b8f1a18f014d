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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-elrsbackpack/msp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestLink(t *testing.T, ports map[string]*MockPort, names []string, opts ...Option) *Link {
	t.Helper()

	base := []Option{
		WithPortOpener(MockOpener(ports)),
		WithPortLister(func(context.Context, *Config) ([]string, error) {
			return names, nil
		}),
		WithBootDelay(0),
		WithIdleInterval(time.Millisecond),
		WithPacing(0, 0),
	}
	link, err := NewLink(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = link.Stop() })
	return link
}

func backpackPort(t *testing.T, version string) *MockPort {
	t.Helper()
	port := NewMockPort()
	require.NoError(t, port.QueueFrame(VersionResponse(version)))
	return port
}

func startConnected(t *testing.T, port *MockPort, opts ...Option) *Link {
	t.Helper()
	link := newTestLink(t, map[string]*MockPort{"/dev/ttyUSB0": port}, []string{"/dev/ttyUSB0"}, opts...)
	require.NoError(t, link.Start(context.Background()))
	require.Eventually(t, func() bool { return link.State() == StateConnected }, waitFor, tick)
	return link
}

func TestLink_DiscoverySkipsBadPorts(t *testing.T) {
	t.Parallel()

	silent := NewMockPort()

	wrongMarker := NewMockPort()
	require.NoError(t, wrongMarker.QueueFrame(msp.NewRequest(msp.FuncGetBackpackVersion)))

	wrongFunction := NewMockPort()
	require.NoError(t, wrongFunction.QueueFrame(msp.Frame{
		Function:  msp.FuncSetOSD,
		Direction: msp.DirectionResponse,
	}))

	good := backpackPort(t, "1.5.0")

	ports := map[string]*MockPort{
		"silent": silent,
		"marker": wrongMarker,
		"func":   wrongFunction,
		"good":   good,
	}
	link := newTestLink(t, ports, []string{"missing", "silent", "marker", "func", "good"})
	require.NoError(t, link.Start(context.Background()))

	require.Eventually(t, func() bool { return link.State() == StateConnected }, waitFor, tick)
	assert.Equal(t, "good", link.PortName())
	assert.Equal(t, "1.5.0", link.Version())

	assert.True(t, silent.Closed())
	assert.True(t, wrongMarker.Closed())
	assert.True(t, wrongFunction.Closed())
	assert.False(t, good.Closed())

	// Every probed port got exactly one version query
	for _, p := range []*MockPort{silent, wrongMarker, wrongFunction, good} {
		frames := p.WrittenFrames()
		require.Len(t, frames, 1)
		assert.Equal(t, msp.FuncGetBackpackVersion, frames[0].Function)
	}
}

func TestLink_DiscoveryAcceptsSetModeResponse(t *testing.T) {
	t.Parallel()

	port := NewMockPort()
	require.NoError(t, port.QueueFrame(msp.Frame{
		Function:  msp.FuncBackpackSetMode,
		Direction: msp.DirectionResponse,
	}))

	startConnected(t, port)
}

func TestLink_DiscoveryRetriesBusyPort(t *testing.T) {
	t.Parallel()

	good := backpackPort(t, "1.5.0")
	var mu sync.Mutex
	attempts := 0
	opener := func(name string, _ *Config) (Port, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return nil, NewLinkError("open", name, errors.New("resource busy"), ErrorTypeTransient)
		}
		return good, nil
	}

	link := newTestLink(t, nil, []string{"busy"}, WithPortOpener(opener))
	require.NoError(t, link.Start(context.Background()))

	require.Eventually(t, func() bool { return link.State() == StateConnected }, waitFor, tick)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestLink_NoBackpackIsTerminal(t *testing.T) {
	t.Parallel()

	silent := NewMockPort()
	link := newTestLink(t, map[string]*MockPort{"a": silent}, []string{"a", "b"})
	require.NoError(t, link.Start(context.Background()))

	select {
	case <-link.Done():
	case <-time.After(waitFor):
		t.Fatal("connector did not exit")
	}
	assert.Equal(t, StateDisconnected, link.State())
	assert.True(t, silent.Closed())
	assert.False(t, link.Enqueue([]byte{1}))
}

func TestLink_StartTwice(t *testing.T) {
	t.Parallel()

	link := newTestLink(t, nil, nil)
	require.NoError(t, link.Start(context.Background()))
	assert.ErrorIs(t, link.Start(context.Background()), ErrAlreadyStarted)
}

func TestLink_EnqueueWhileNotConnected(t *testing.T) {
	t.Parallel()

	link := newTestLink(t, nil, nil)
	require.Equal(t, StateSearching, link.State())

	for i := 0; i < 5; i++ {
		assert.False(t, link.Enqueue([]byte{byte(i)}))
		require.NoError(t, link.Send(msp.NewRequest(msp.FuncSetOSD, msp.OSDDisplay)))
	}
	assert.Equal(t, 0, link.QueueLength())
}

func TestLink_SendRepeatsOSDContent(t *testing.T) {
	t.Parallel()

	port := backpackPort(t, "1.0")
	link := startConnected(t, port, WithPacing(0, 2))

	require.NoError(t, link.Send(msp.NewRequest(msp.FuncSetOSD, msp.OSDDisplay)))
	require.NoError(t, link.Send(msp.NewRequest(msp.FuncSetSendUID, 0)))

	// handshake + 3 OSD copies + 1 address frame
	require.Eventually(t, func() bool { return len(port.Writes()) == 5 }, waitFor, tick)

	frames := port.WrittenFrames()[1:]
	for _, f := range frames[:3] {
		assert.Equal(t, msp.FuncSetOSD, f.Function)
	}
	assert.Equal(t, msp.FuncSetSendUID, frames[3].Function)
}

func TestLink_FlushWritesQueueBeforeStop(t *testing.T) {
	t.Parallel()

	port := backpackPort(t, "1.0")
	link := startConnected(t, port, WithPacing(50*time.Millisecond, 0))

	require.NoError(t, link.Send(msp.NewRequest(msp.FuncBackpackSetMode, msp.ModeBind)))
	require.NoError(t, link.Send(msp.NewRequest(msp.FuncBackpackSetMode, msp.ModeWiFi)))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, link.Flush(ctx))
	require.NoError(t, link.Stop())

	frames := port.WrittenFrames()
	require.Len(t, frames, 3)
	assert.Equal(t, []byte{msp.ModeBind}, frames[1].Payload)
	assert.Equal(t, []byte{msp.ModeWiFi}, frames[2].Payload)
	assert.Equal(t, 0, link.QueueLength())
}

func TestLink_FlushIdleLink(t *testing.T) {
	t.Parallel()

	// Nothing accepted: a link that never connected has nothing to flush.
	link := newTestLink(t, nil, nil)
	require.NoError(t, link.Flush(context.Background()))
}

func TestLink_FlushHonoursContext(t *testing.T) {
	t.Parallel()

	port := backpackPort(t, "1.0")
	link := startConnected(t, port, WithPacing(time.Hour, 0))
	require.NoError(t, link.Send(msp.NewRequest(msp.FuncBackpackSetMode, msp.ModeBind)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, link.Flush(ctx), context.DeadlineExceeded)
}

func TestLink_FlushReportsClosedLink(t *testing.T) {
	t.Parallel()

	port := backpackPort(t, "1.0")
	link := startConnected(t, port, WithMaxWriteErrors(1))
	port.FailWrites(-1)

	for i := 0; i < 5; i++ {
		require.NoError(t, link.Send(msp.NewRequest(msp.FuncSetSendUID, 0)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.ErrorIs(t, link.Flush(ctx), ErrLinkClosed)
	assert.Equal(t, StateDisconnected, link.State())
}

func TestLink_SendRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	link := newTestLink(t, nil, nil)
	err := link.Send(msp.NewRequest(msp.FuncSetOSD, make([]byte, msp.MaxPayloadLength+1)...))
	require.ErrorIs(t, err, msp.ErrPayloadTooLarge)
}

func TestLink_WriteFailureBudget(t *testing.T) {
	t.Parallel()

	port := backpackPort(t, "1.0")
	link := startConnected(t, port)
	port.FailWrites(-1)

	for i := 0; i < 10; i++ {
		link.Enqueue([]byte{byte(i)})
	}

	require.Eventually(t, func() bool { return link.State() == StateDisconnected }, waitFor, tick)
	<-link.Done()

	assert.Equal(t, 6, port.FailedWrites())
	assert.True(t, port.Closed())
	assert.False(t, link.Enqueue([]byte{0xFF}))
	assert.Equal(t, 6, port.FailedWrites())
}

func TestLink_SuccessfulWriteResetsBudget(t *testing.T) {
	t.Parallel()

	port := backpackPort(t, "1.0")
	link := startConnected(t, port)

	port.FailWrites(5)
	for i := 0; i < 6; i++ {
		require.True(t, link.Enqueue([]byte{byte(i)}))
	}
	require.Eventually(t, func() bool { return len(port.Writes()) == 2 }, waitFor, tick)

	port.FailWrites(5)
	for i := 0; i < 6; i++ {
		require.True(t, link.Enqueue([]byte{byte(i)}))
	}
	require.Eventually(t, func() bool { return len(port.Writes()) == 3 }, waitFor, tick)

	assert.Equal(t, 10, port.FailedWrites())
	assert.Equal(t, StateConnected, link.State())
}

func TestLink_StopClosesPort(t *testing.T) {
	t.Parallel()

	port := backpackPort(t, "1.0")
	link := startConnected(t, port)

	require.NoError(t, link.Stop())
	assert.Equal(t, StateDisconnected, link.State())
	assert.True(t, port.Closed())
}

func TestLink_SetPacing(t *testing.T) {
	t.Parallel()

	link := newTestLink(t, nil, nil)
	link.SetPacing(20*time.Millisecond, 3)
	delay, repeat := link.Pacing()
	assert.Equal(t, 20*time.Millisecond, delay)
	assert.Equal(t, 3, repeat)

	link.SetPacing(-time.Second, -1)
	delay, repeat = link.Pacing()
	assert.Zero(t, delay)
	assert.Zero(t, repeat)
}

type recordingHandler struct {
	frames []msp.Frame
	mu     sync.Mutex
}

func (h *recordingHandler) HandleFrame(frame msp.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, frame)
}

func (h *recordingHandler) received() []msp.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]msp.Frame(nil), h.frames...)
}

func TestLink_InboundFramesReachHandler(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	port := backpackPort(t, "1.0")
	startConnected(t, port, WithInboundHandler(handler))

	// A response-direction frame is not a backpack command and is dropped.
	require.NoError(t, port.QueueFrame(msp.Frame{
		Function:  msp.FuncSetRecordingState,
		Payload:   []byte{msp.RecordingStart},
		Direction: msp.DirectionResponse,
	}))
	require.NoError(t, port.QueueFrame(msp.NewRequest(msp.FuncSetRecordingState, msp.RecordingStart)))

	require.Eventually(t, func() bool { return len(handler.received()) == 1 }, waitFor, tick)
	got := handler.received()[0]
	assert.Equal(t, msp.FuncSetRecordingState, got.Function)
	assert.Equal(t, []byte{msp.RecordingStart}, got.Payload)
}

func TestLink_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opt  Option
		name string
	}{
		{name: "nil config", opt: WithConfig(nil)},
		{name: "zero baud", opt: WithBaudRate(0)},
		{name: "zero read timeout", opt: WithReadTimeout(0)},
		{name: "zero queue", opt: WithQueueSize(0)},
		{name: "negative budget", opt: WithMaxWriteErrors(-1)},
		{name: "negative pacing", opt: WithPacing(-time.Millisecond, 0)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewLink(tt.opt)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}
