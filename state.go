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
	"fmt"
	"sync"
)

// ConnectionState is the lifecycle state of the backpack link.
type ConnectionState int

const (
	// StateSearching means discovery has not finished.
	StateSearching ConnectionState = iota
	// StateConnected means a backpack answered the handshake and the
	// connector loop owns its port.
	StateConnected
	// StateDisconnected is terminal. There is no automatic re-scan.
	StateDisconnected
)

// String returns the state name
func (s ConnectionState) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// stateManager guards the connection state. Only the link mutates it.
type stateManager struct {
	port  string
	mu    sync.RWMutex
	state ConnectionState
}

func newStateManager() *stateManager {
	return &stateManager{state: StateSearching}
}

func (sm *stateManager) get() ConnectionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

func (sm *stateManager) snapshot() (ConnectionState, string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state, sm.port
}

// connect moves Searching to Connected(port).
func (sm *stateManager) connect(port string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != StateSearching {
		return false
	}
	sm.state = StateConnected
	sm.port = port
	return true
}

// disconnect moves any state to Disconnected and reports whether it changed.
func (sm *stateManager) disconnect() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state == StateDisconnected {
		return false
	}
	sm.state = StateDisconnected
	return true
}
