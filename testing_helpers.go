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
	"errors"
	"sync"

	"github.com/ZaparooProject/go-elrsbackpack/msp"
)

// errMockWrite is returned by MockPort writes that were told to fail
var errMockWrite = errors.New("mock write failure")

// MockPort is an in-memory Port for tests. Reads are served from queued
// bytes and return (0, nil) when nothing is queued, like a serial read
// timeout. Writes are recorded.
type MockPort struct {
	// OnWrite, if set, is called after each successful write, outside the lock.
	OnWrite       func(p *MockPort, data []byte)
	pending       []byte
	writes        [][]byte
	mu            sync.Mutex
	failWrites    int
	failedWrites  int
	writeAttempts int
	closed        bool
}

// NewMockPort creates an empty mock port
func NewMockPort() *MockPort {
	return &MockPort{}
}

// QueueRead appends bytes for later reads
func (m *MockPort) QueueRead(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, data...)
}

// QueueFrame encodes frame and queues it for reading
func (m *MockPort) QueueFrame(frame msp.Frame) error {
	wire, err := frame.Encode()
	if err != nil {
		return err
	}
	m.QueueRead(wire)
	return nil
}

// FailWrites makes the next n writes fail. A negative n fails every write.
func (m *MockPort) FailWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
}

// Read implements io.Reader
func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrPortClosed
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

// Write implements io.Writer
func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	m.writeAttempts++
	if m.closed {
		m.mu.Unlock()
		return 0, ErrPortClosed
	}
	if m.failWrites != 0 {
		if m.failWrites > 0 {
			m.failWrites--
		}
		m.failedWrites++
		m.mu.Unlock()
		return 0, errMockWrite
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	hook := m.OnWrite
	m.mu.Unlock()

	if hook != nil {
		hook(m, p)
	}
	return len(p), nil
}

// Close implements io.Closer
func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called
func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Writes returns a copy of every successful write
func (m *MockPort) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// WrittenFrames decodes every successful write
func (m *MockPort) WrittenFrames() []msp.Frame {
	writes := m.Writes()
	frames := make([]msp.Frame, 0, len(writes))
	for _, w := range writes {
		if f, result := msp.Decode(w); result == msp.Complete {
			frames = append(frames, f)
		}
	}
	return frames
}

// FailedWrites returns how many writes were failed on purpose
func (m *MockPort) FailedWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failedWrites
}

// WriteAttempts counts every call to Write
func (m *MockPort) WriteAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeAttempts
}

// VersionResponse builds the handshake answer of a backpack running version.
func VersionResponse(version string) msp.Frame {
	return msp.Frame{
		Function:  msp.FuncGetBackpackVersion,
		Payload:   []byte(version),
		Direction: msp.DirectionResponse,
	}
}

// MockOpener returns a PortOpener serving the given ports by name. Unknown
// names fail to open.
func MockOpener(ports map[string]*MockPort) PortOpener {
	return func(name string, _ *Config) (Port, error) {
		if p, ok := ports[name]; ok {
			return p, nil
		}
		return nil, errors.New("no such device: " + name)
	}
}
