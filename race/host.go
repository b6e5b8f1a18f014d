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

// Package race turns timing events from the host race manager into OSD
// updates for every pilot in the current heat.
//
// The host calls the Controller's event methods from its own goroutines.
// Each method returns quickly: per-pilot work is handed to a bounded Pool
// and every OSD update runs inside an osd.Session, so pilots never see each
// other's messages.
package race

import (
	"context"
	"time"

	backpack "github.com/ZaparooProject/go-elrsbackpack"
)

// OptionLookup reads a persisted host option. ok is false when the option
// has never been set.
type OptionLookup interface {
	Option(name string) (value string, ok bool)
}

// Pilot is the part of a pilot record the OSD needs.
type Pilot struct {
	Callsign   string
	Hardware   string
	BindPhrase string
	ID         int
}

// Heat describes the heat being raced.
type Heat struct {
	Name      string
	ClassName string
	ID        int
	// Rounds is the number of rounds already run. The staged race is round Rounds+1.
	Rounds int
}

// Roster looks up heats and pilots in the host database.
type Roster interface {
	HeatPilots(heatID int) []int
	Pilot(pilotID int) (Pilot, bool)
	Heat(heatID int) (Heat, bool)
}

// Pacer receives the link pacing settings. *backpack.Link implements it.
type Pacer interface {
	SetPacing(delay time.Duration, repeat int)
}

// PowerCycler restarts the backpack hardware.
type PowerCycler interface {
	Cycle(ctx context.Context) error
}

// RaceHost is the host's race lifecycle, driven by remote control from the
// pilots' goggles.
type RaceHost interface {
	RaceStatus() backpack.RaceStatus
	StageRace(startDelay time.Duration) error
	StopRace() error
}
