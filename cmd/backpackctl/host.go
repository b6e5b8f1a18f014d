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

package main

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	backpack "github.com/ZaparooProject/go-elrsbackpack"
	"github.com/ZaparooProject/go-elrsbackpack/race"
	"github.com/rs/zerolog/log"
)

// consecutivesBase is the lap window of the "fastest consecutive" result.
const consecutivesBase = 3

var (
	errRaceActive   = errors.New("race already in progress")
	errRaceInactive = errors.New("no race in progress")
	errNoHeat       = errors.New("no heat selected")
	errNotInHeat    = errors.New("pilot is not in the current heat")
	errNoLaps       = errors.New("pilot has no laps")
)

// raceEvents is the part of race.Controller the simulated host drives.
type raceEvents interface {
	HeatSet(heatID int)
	RaceStage(heatID int)
	RaceStart()
	RaceFinish()
	RaceStop()
	LapRecorded(ev race.LapRecorded)
	LapDelete()
	LapsClear()
	PilotDone(ev race.PilotDone)
}

// heatRoster is a roster whose heats count completed rounds.
type heatRoster interface {
	race.Roster
	CompleteRound(heatID int)
}

// simHost is an in-memory race timer. Operators feed it crossings from the
// console and it emits the events a real timing system would.
type simHost struct {
	events   raceEvents
	roster   heatRoster
	timer    *time.Timer
	laps     map[int][]time.Duration
	done     map[int]bool
	heatID   int
	lapLimit int
	status   backpack.RaceStatus
	mu       sync.Mutex
}

func newSimHost(events raceEvents, roster heatRoster, lapLimit int) *simHost {
	return &simHost{
		events:   events,
		roster:   roster,
		lapLimit: lapLimit,
		laps:     make(map[int][]time.Duration),
		done:     make(map[int]bool),
	}
}

// RaceStatus implements race.RaceHost
func (h *simHost) RaceStatus() backpack.RaceStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// HeatID returns the selected heat, 0 when none
func (h *simHost) HeatID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.heatID
}

// SetHeat selects the heat for the next race
func (h *simHost) SetHeat(heatID int) error {
	if _, ok := h.roster.Heat(heatID); !ok {
		return fmt.Errorf("unknown heat %d", heatID)
	}

	h.mu.Lock()
	if h.status != backpack.RaceReady {
		h.mu.Unlock()
		return errRaceActive
	}
	h.heatID = heatID
	h.resetLocked()
	h.mu.Unlock()

	h.events.HeatSet(heatID)
	return nil
}

// StageRace implements race.RaceHost. The race starts once startDelay has
// elapsed.
func (h *simHost) StageRace(startDelay time.Duration) error {
	h.mu.Lock()
	if h.heatID == 0 {
		h.mu.Unlock()
		return errNoHeat
	}
	if h.status != backpack.RaceReady {
		h.mu.Unlock()
		return errRaceActive
	}
	h.status = backpack.RaceStaging
	h.resetLocked()
	heatID := h.heatID
	h.mu.Unlock()

	log.Info().Int("heat", heatID).Dur("delay", startDelay).Msg("race staged")
	h.events.RaceStage(heatID)

	// The start event must follow the stage event.
	h.mu.Lock()
	if h.status == backpack.RaceStaging {
		h.timer = time.AfterFunc(startDelay, h.begin)
	}
	h.mu.Unlock()
	return nil
}

func (h *simHost) begin() {
	h.mu.Lock()
	if h.status != backpack.RaceStaging {
		h.mu.Unlock()
		return
	}
	h.status = backpack.RaceRacing
	h.mu.Unlock()

	log.Info().Msg("race started")
	h.events.RaceStart()
}

// FinishRace signals the end of race time. Pilots still complete their lap.
func (h *simHost) FinishRace() error {
	if h.RaceStatus() != backpack.RaceRacing {
		return errRaceInactive
	}
	h.events.RaceFinish()
	return nil
}

// StopRace implements race.RaceHost
func (h *simHost) StopRace() error {
	h.mu.Lock()
	if h.status != backpack.RaceStaging && h.status != backpack.RaceRacing {
		h.mu.Unlock()
		return errRaceInactive
	}
	h.status = backpack.RaceDone
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()

	log.Info().Msg("race stopped")
	h.events.RaceStop()
	return nil
}

// ClearLaps discards the race and returns to ready. With save set the heat's
// round counter advances.
func (h *simHost) ClearLaps(save bool) error {
	h.mu.Lock()
	if h.status == backpack.RaceStaging || h.status == backpack.RaceRacing {
		h.mu.Unlock()
		return errRaceActive
	}
	heatID := h.heatID
	h.status = backpack.RaceReady
	h.resetLocked()
	h.mu.Unlock()

	if save && heatID != 0 {
		h.roster.CompleteRound(heatID)
	}
	h.events.LapsClear()
	return nil
}

// RecordLap counts a crossing of pilotID with the given lap time.
func (h *simHost) RecordLap(pilotID int, lapTime time.Duration) error {
	h.mu.Lock()
	if h.status != backpack.RaceRacing {
		h.mu.Unlock()
		return errRaceInactive
	}
	pilots := h.roster.HeatPilots(h.heatID)
	if !slices.Contains(pilots, pilotID) {
		h.mu.Unlock()
		return errNotInHeat
	}
	if h.done[pilotID] {
		h.mu.Unlock()
		return fmt.Errorf("pilot %d already finished", pilotID)
	}

	h.laps[pilotID] = append(h.laps[pilotID], lapTime)
	laps := h.laps[pilotID]
	finished := h.lapLimit > 0 && len(laps) >= h.lapLimit
	if finished {
		h.done[pilotID] = true
	}
	results := standings(h.roster, pilots, h.laps)
	gap := gapFor(results, h.laps, pilotID)
	h.mu.Unlock()

	h.events.LapRecorded(race.LapRecorded{
		Results:   results,
		Gap:       gap,
		PilotID:   pilotID,
		PilotDone: finished,
	})
	if finished {
		h.events.PilotDone(race.PilotDone{Results: results, PilotID: pilotID})
	}
	return nil
}

// DeleteLap removes the last lap of pilotID.
func (h *simHost) DeleteLap(pilotID int) error {
	h.mu.Lock()
	laps := h.laps[pilotID]
	if len(laps) == 0 {
		h.mu.Unlock()
		return errNoLaps
	}
	h.laps[pilotID] = laps[:len(laps)-1]
	delete(h.done, pilotID)
	h.mu.Unlock()

	h.events.LapDelete()
	return nil
}

// Results returns the current standings
func (h *simHost) Results() []race.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.heatID == 0 {
		return nil
	}
	return standings(h.roster, h.roster.HeatPilots(h.heatID), h.laps)
}

func (h *simHost) resetLocked() {
	h.laps = make(map[int][]time.Duration)
	h.done = make(map[int]bool)
}

// standings ranks pilots by laps completed, then by total time.
func standings(roster race.Roster, pilots []int, laps map[int][]time.Duration) []race.Result {
	type entry struct {
		result race.Result
		total  time.Duration
	}
	entries := make([]entry, 0, len(pilots))
	for _, id := range pilots {
		pilot, ok := roster.Pilot(id)
		if !ok {
			continue
		}
		own := laps[id]
		total := sum(own)
		entries = append(entries, entry{
			total: total,
			result: race.Result{
				PilotID:          id,
				Callsign:         pilot.Callsign,
				Laps:             len(own),
				TotalTime:        race.FormatLapTime(total),
				FastestLap:       race.FormatLapTime(fastest(own)),
				Consecutives:     race.FormatLapTime(fastestWindow(own, consecutivesBase)),
				ConsecutivesBase: consecutivesBase,
			},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.result.Laps != b.result.Laps {
			return a.result.Laps > b.result.Laps
		}
		if a.total != b.total {
			return a.total < b.total
		}
		return a.result.PilotID < b.result.PilotID
	})

	results := make([]race.Result, len(entries))
	for i, e := range entries {
		results[i] = e.result
		results[i].Position = i + 1
	}
	return results
}

// gapFor compares pilotID with the pilot one place ahead at the same lap
// count. The leader gets a Gap without NextRank.
func gapFor(results []race.Result, laps map[int][]time.Duration, pilotID int) race.Gap {
	own := laps[pilotID]
	gap := race.Gap{LapNumber: len(own)}
	if len(own) > 0 {
		gap.LastLapTime = own[len(own)-1]
	}

	for i, r := range results {
		if r.PilotID != pilotID {
			continue
		}
		if i == 0 || len(own) == 0 {
			return gap
		}
		ahead := results[i-1]
		theirs := laps[ahead.PilotID]
		n := min(len(own), len(theirs))
		diff := sum(own) - sum(theirs[:n])
		if diff < 0 {
			diff = -diff
		}
		gap.NextRank = &race.Rank{
			Callsign: ahead.Callsign,
			Position: ahead.Position,
			DiffTime: diff,
		}
		return gap
	}
	return gap
}

func sum(laps []time.Duration) time.Duration {
	var total time.Duration
	for _, l := range laps {
		total += l
	}
	return total
}

func fastest(laps []time.Duration) time.Duration {
	var best time.Duration
	for i, l := range laps {
		if i == 0 || l < best {
			best = l
		}
	}
	return best
}

// fastestWindow returns the quickest run of n consecutive laps, or 0 when
// fewer than n laps exist.
func fastestWindow(laps []time.Duration, n int) time.Duration {
	if n <= 0 || len(laps) < n {
		return 0
	}
	best := sum(laps[:n])
	window := best
	for i := n; i < len(laps); i++ {
		window += laps[i] - laps[i-n]
		if window < best {
			best = window
		}
	}
	return best
}
