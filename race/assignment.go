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
	"github.com/ZaparooProject/go-elrsbackpack/osd"
	"github.com/rs/zerolog/log"
)

// HeatAssignment maps each pilot of the heat to their receiver. A nil entry
// means the pilot has no supported OSD hardware and gets no output.
type HeatAssignment map[int]*osd.Target

// BuildAssignment resolves every pilot slotted in heatID.
func BuildAssignment(roster Roster, heatID int) HeatAssignment {
	assignment := make(HeatAssignment)
	for _, pilotID := range roster.HeatPilots(heatID) {
		if pilotID == 0 {
			continue
		}
		assignment[pilotID] = resolveTarget(roster, pilotID)
	}
	return assignment
}

// resolveTarget derives a pilot's receiver from their hardware attribute and
// bind phrase, falling back to the callsign as the phrase.
func resolveTarget(roster Roster, pilotID int) *osd.Target {
	pilot, ok := roster.Pilot(pilotID)
	if !ok {
		log.Warn().Int("pilot", pilotID).Msg("pilot not found, OSD disabled")
		return nil
	}

	hw, ok := osd.ParseHardware(pilot.Hardware)
	if !ok {
		log.Debug().Int("pilot", pilotID).Str("hardware", pilot.Hardware).Msg("unsupported OSD hardware")
		return nil
	}

	phrase := pilot.BindPhrase
	if phrase == "" {
		phrase = pilot.Callsign
	}

	target := &osd.Target{Hardware: hw, UID: osd.HashPhrase(phrase)}
	log.Info().
		Int("pilot", pilotID).
		Str("hardware", string(hw)).
		Stringer("uid", target.UID).
		Msg("pilot receiver assigned")
	return target
}

// Active returns the pilots that have a receiver
func (h HeatAssignment) Active() map[int]osd.Target {
	active := make(map[int]osd.Target, len(h))
	for id, target := range h {
		if target != nil {
			active[id] = *target
		}
	}
	return active
}

func (h HeatAssignment) clone() HeatAssignment {
	out := make(HeatAssignment, len(h))
	for id, target := range h {
		out[id] = target
	}
	return out
}
