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
	"time"

	"github.com/ZaparooProject/go-elrsbackpack/msp"
	"github.com/rs/zerolog/log"
)

// RaceStartDelay is the countdown requested when a pilot starts recording.
const RaceStartDelay = 10 * time.Second

// RaceStatus mirrors the host's race state as far as remote control cares.
type RaceStatus int

const (
	RaceReady RaceStatus = iota
	RaceStaging
	RaceRacing
	RaceDone
)

// String returns the race status name
func (s RaceStatus) String() string {
	switch s {
	case RaceReady:
		return "ready"
	case RaceStaging:
		return "staging"
	case RaceRacing:
		return "racing"
	case RaceDone:
		return "done"
	default:
		return fmt.Sprintf("RaceStatus(%d)", int(s))
	}
}

// RaceControl is the host surface the inbound monitor drives.
type RaceControl interface {
	// ExternalControlAllowed gates every remote stage or stop request.
	ExternalControlAllowed() bool
	RaceStatus() RaceStatus
	StageRace(startDelay time.Duration) error
	StopRace() error
}

// InboundHandler receives complete frames originated by the backpack.
type InboundHandler interface {
	HandleFrame(frame msp.Frame)
}

// InboundMonitor turns recording-state frames from the pilot's goggles into
// race stage and stop requests.
type InboundMonitor struct {
	control RaceControl
	wg      sync.WaitGroup
}

// NewInboundMonitor creates a monitor dispatching to control
func NewInboundMonitor(control RaceControl) *InboundMonitor {
	return &InboundMonitor{control: control}
}

// HandleFrame acts on FuncSetRecordingState and ignores everything else. The
// race action runs on its own goroutine so the connector loop never waits on
// the host.
func (m *InboundMonitor) HandleFrame(frame msp.Frame) {
	if frame.Function != msp.FuncSetRecordingState || len(frame.Payload) == 0 {
		return
	}

	switch frame.Payload[0] {
	case msp.RecordingStop:
		m.dispatch(m.stopRace)
	case msp.RecordingStart:
		m.dispatch(m.startRace)
	default:
		log.Debug().Uint8("state", frame.Payload[0]).Msg("ignoring unknown recording state")
	}
}

// Wait blocks until every dispatched action has returned.
func (m *InboundMonitor) Wait() {
	m.wg.Wait()
}

func (m *InboundMonitor) dispatch(action func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		action()
	}()
}

func (m *InboundMonitor) startRace() {
	if !m.control.ExternalControlAllowed() {
		return
	}
	if status := m.control.RaceStatus(); status != RaceReady {
		log.Debug().Stringer("status", status).Msg("ignoring remote race start")
		return
	}
	if err := m.control.StageRace(RaceStartDelay); err != nil {
		log.Error().Err(err).Msg("failed to stage race from backpack")
	}
}

func (m *InboundMonitor) stopRace() {
	if !m.control.ExternalControlAllowed() {
		return
	}
	status := m.control.RaceStatus()
	if status != RaceStaging && status != RaceRacing {
		log.Debug().Stringer("status", status).Msg("ignoring remote race stop")
		return
	}
	if err := m.control.StopRace(); err != nil {
		log.Error().Err(err).Msg("failed to stop race from backpack")
	}
}
