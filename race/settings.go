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
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-elrsbackpack/osd"
	"github.com/rs/zerolog/log"
)

// Host option names
const (
	OptHeatName           = "heat_name"
	OptPositionMode       = "position_mode"
	OptGapMode            = "gap_mode"
	OptResultsMode        = "results_mode"
	OptStageMessage       = "racestage_message"
	OptStartMessage       = "racestart_message"
	OptPilotDoneMessage   = "pilotdone_message"
	OptFinishMessage      = "racefinish_message"
	OptStopMessage        = "racestop_message"
	OptLeaderMessage      = "leader_message"
	OptStartUptime        = "racestart_uptime"
	OptFinishUptime       = "finish_uptime"
	OptResultsUptime      = "results_uptime"
	OptAnnouncementUptime = "announcement_uptime"
	OptStatusRow          = "status_row"
	OptCurrentLapRow      = "currentlap_row"
	OptLapResultsRow      = "lapresults_row"
	OptAnnouncementRow    = "announcement_row"
	OptRepeat             = "bp_repeat"
	OptDelay              = "bp_delay"
	OptRaceControl        = "race_control"
)

// OptionNames lists every option the controller reads
func OptionNames() []string {
	return []string{
		OptHeatName, OptPositionMode, OptGapMode, OptResultsMode,
		OptStageMessage, OptStartMessage, OptPilotDoneMessage, OptFinishMessage,
		OptStopMessage, OptLeaderMessage,
		OptStartUptime, OptFinishUptime, OptResultsUptime, OptAnnouncementUptime,
		OptStatusRow, OptCurrentLapRow, OptLapResultsRow, OptAnnouncementRow,
		OptRepeat, OptDelay, OptRaceControl,
	}
}

// Option value units
const (
	uptimeUnit = 100 * time.Millisecond
	delayUnit  = 10 * time.Microsecond
)

// Settings is a snapshot of the OSD options.
type Settings struct {
	StageMessage       string
	StartMessage       string
	PilotDoneMessage   string
	FinishMessage      string
	StopMessage        string
	LeaderMessage      string
	Rows               osd.Rows
	StartUptime        time.Duration
	FinishUptime       time.Duration
	ResultsUptime      time.Duration
	AnnouncementUptime time.Duration
	SendDelay          time.Duration
	RepeatCount        int
	HeatName           bool
	PositionMode       bool
	GapMode            bool
	ResultsMode        bool
	RaceControl        bool
}

// DefaultSettings returns the settings used for options that are not set
func DefaultSettings() Settings {
	return Settings{
		HeatName:           true,
		PositionMode:       true,
		GapMode:            true,
		ResultsMode:        true,
		StageMessage:       ">> ARM NOW <<",
		StartMessage:       ">> GO! <<",
		PilotDoneMessage:   ">> FINISHED! <<",
		FinishMessage:      ">> FINISH LAP! <<",
		StopMessage:        ">> LAND NOW! <<",
		LeaderMessage:      "RACE LEADER",
		StartUptime:        5 * uptimeUnit,
		FinishUptime:       20 * uptimeUnit,
		ResultsUptime:      40 * uptimeUnit,
		AnnouncementUptime: 50 * uptimeUnit,
		Rows:               osd.DefaultRows(),
		SendDelay:          5000 * delayUnit,
	}
}

// LoadSettings reads every OSD option, keeping the default for options that
// are unset or malformed.
func LoadSettings(opts OptionLookup) Settings {
	s := DefaultSettings()
	if opts == nil {
		return s
	}

	r := reader{opts: opts}
	s.HeatName = r.boolean(OptHeatName, s.HeatName)
	s.PositionMode = r.boolean(OptPositionMode, s.PositionMode)
	s.GapMode = r.boolean(OptGapMode, s.GapMode)
	s.ResultsMode = r.boolean(OptResultsMode, s.ResultsMode)
	s.RaceControl = r.boolean(OptRaceControl, s.RaceControl)

	s.StageMessage = r.text(OptStageMessage, s.StageMessage)
	s.StartMessage = r.text(OptStartMessage, s.StartMessage)
	s.PilotDoneMessage = r.text(OptPilotDoneMessage, s.PilotDoneMessage)
	s.FinishMessage = r.text(OptFinishMessage, s.FinishMessage)
	s.StopMessage = r.text(OptStopMessage, s.StopMessage)
	s.LeaderMessage = r.text(OptLeaderMessage, s.LeaderMessage)

	s.StartUptime = r.duration(OptStartUptime, uptimeUnit, s.StartUptime)
	s.FinishUptime = r.duration(OptFinishUptime, uptimeUnit, s.FinishUptime)
	s.ResultsUptime = r.duration(OptResultsUptime, uptimeUnit, s.ResultsUptime)
	s.AnnouncementUptime = r.duration(OptAnnouncementUptime, uptimeUnit, s.AnnouncementUptime)
	s.SendDelay = r.duration(OptDelay, delayUnit, s.SendDelay)

	s.Rows.Status = r.row(OptStatusRow, s.Rows.Status)
	s.Rows.CurrentLap = r.row(OptCurrentLapRow, s.Rows.CurrentLap)
	s.Rows.LapResults = r.row(OptLapResultsRow, s.Rows.LapResults)
	s.Rows.Announcement = r.row(OptAnnouncementRow, s.Rows.Announcement)
	s.RepeatCount = r.integer(OptRepeat, s.RepeatCount)

	return s
}

// RaceControlAllowed reads the race_control option directly, so remote
// control follows the option without a settings reload.
func RaceControlAllowed(opts OptionLookup) bool {
	if opts == nil {
		return false
	}
	return reader{opts: opts}.boolean(OptRaceControl, false)
}

type reader struct {
	opts OptionLookup
}

func (r reader) lookup(name string) (string, bool) {
	value, ok := r.opts.Option(name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (r reader) text(name, fallback string) string {
	value, ok := r.opts.Option(name)
	if !ok {
		return fallback
	}
	return value
}

func (r reader) boolean(name string, fallback bool) bool {
	value, ok := r.lookup(name)
	if !ok || value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("option", name).Str("value", value).Msg("ignoring malformed boolean option")
		return fallback
	}
	return b
}

func (r reader) integer(name string, fallback int) int {
	value, ok := r.lookup(name)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Warn().Str("option", name).Str("value", value).Msg("ignoring malformed integer option")
		return fallback
	}
	return n
}

// row is an integer that must fit the tallest OSD grid.
func (r reader) row(name string, fallback int) int {
	n := r.integer(name, fallback)
	if limit := osd.MaxRows(); n >= limit {
		log.Warn().Str("option", name).Int("value", n).Int("rows", limit).Msg("ignoring out of range row option")
		return fallback
	}
	return n
}

func (r reader) duration(name string, unit, fallback time.Duration) time.Duration {
	value, ok := r.lookup(name)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n < 0 {
		log.Warn().Str("option", name).Str("value", value).Msg("ignoring malformed duration option")
		return fallback
	}
	return time.Duration(n * float64(unit))
}
