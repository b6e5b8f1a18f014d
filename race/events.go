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

import "time"

// Result is one pilot's standing in the running race.
type Result struct {
	Callsign         string
	FastestLap       string
	Consecutives     string
	TotalTime        string
	PilotID          int
	Position         int
	Laps             int
	ConsecutivesBase int
}

// Rank is the pilot one position ahead.
type Rank struct {
	Callsign string
	Position int
	DiffTime time.Duration
}

// Gap describes the lap just completed and the gap to the pilot ahead.
type Gap struct {
	// NextRank is nil, or has Position 0, when the pilot leads.
	NextRank    *Rank
	LapNumber   int
	LastLapTime time.Duration
}

// LapRecorded is raised when a pilot crosses the gate.
type LapRecorded struct {
	// Results holds every pilot in race-time order.
	Results []Result
	Gap     Gap
	PilotID int
	// PilotDone is set when this crossing finished the pilot's race.
	PilotDone bool
}

// PilotDone is raised when a pilot completes the race.
type PilotDone struct {
	Results []Result
	PilotID int
}
