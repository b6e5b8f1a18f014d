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
	"testing"
	"time"

	"github.com/ZaparooProject/go-elrsbackpack/osd"
	"github.com/stretchr/testify/assert"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSettings(), LoadSettings(nil))
	assert.Equal(t, DefaultSettings(), LoadSettings(optionMap{}))

	s := DefaultSettings()
	assert.Equal(t, 50*time.Millisecond, s.SendDelay)
	assert.Equal(t, 500*time.Millisecond, s.StartUptime)
	assert.Equal(t, osd.DefaultRows(), s.Rows)
	assert.False(t, s.RaceControl)
}

func TestLoadSettings_Overrides(t *testing.T) {
	t.Parallel()

	s := LoadSettings(optionMap{
		OptHeatName:           "0",
		OptPositionMode:       "false",
		OptGapMode:            "1",
		OptRaceControl:        "1",
		OptStageMessage:       "ARM",
		OptLeaderMessage:      "P1",
		OptStartUptime:        "15",
		OptAnnouncementUptime: "2.5",
		OptStatusRow:          "7",
		OptCurrentLapRow:      "1",
		OptLapResultsRow:      "16",
		OptAnnouncementRow:    "4",
		OptRepeat:             "3",
		OptDelay:              "1000",
	})

	assert.False(t, s.HeatName)
	assert.False(t, s.PositionMode)
	assert.True(t, s.GapMode)
	assert.True(t, s.RaceControl)
	assert.Equal(t, "ARM", s.StageMessage)
	assert.Equal(t, "P1", s.LeaderMessage)
	assert.Equal(t, 1500*time.Millisecond, s.StartUptime)
	assert.Equal(t, 250*time.Millisecond, s.AnnouncementUptime)
	assert.Equal(t, osd.Rows{Status: 7, CurrentLap: 1, LapResults: 16, Announcement: 4}, s.Rows)
	assert.Equal(t, 3, s.RepeatCount)
	assert.Equal(t, 10*time.Millisecond, s.SendDelay)
}

func TestLoadSettings_MalformedKeepsDefault(t *testing.T) {
	t.Parallel()

	defaults := DefaultSettings()
	s := LoadSettings(optionMap{
		OptResultsMode:  "maybe",
		OptStatusRow:    "-1",
		OptRepeat:       "many",
		OptFinishUptime: "soon",
		OptDelay:        "",
	})

	assert.Equal(t, defaults.ResultsMode, s.ResultsMode)
	assert.Equal(t, defaults.Rows.Status, s.Rows.Status)
	assert.Equal(t, defaults.RepeatCount, s.RepeatCount)
	assert.Equal(t, defaults.FinishUptime, s.FinishUptime)
	assert.Equal(t, defaults.SendDelay, s.SendDelay)
}

func TestLoadSettings_RowOutOfRangeKeepsDefault(t *testing.T) {
	t.Parallel()

	defaults := DefaultSettings()
	s := LoadSettings(optionMap{
		OptStatusRow:       "300",
		OptCurrentLapRow:   "18",
		OptLapResultsRow:   "17",
		OptAnnouncementRow: "0",
	})

	assert.Equal(t, defaults.Rows.Status, s.Rows.Status)
	assert.Equal(t, defaults.Rows.CurrentLap, s.Rows.CurrentLap)
	assert.Equal(t, 17, s.Rows.LapResults)
	assert.Equal(t, 0, s.Rows.Announcement)
}

func TestRaceControlAllowed(t *testing.T) {
	t.Parallel()

	assert.False(t, RaceControlAllowed(nil))
	assert.False(t, RaceControlAllowed(optionMap{}))
	assert.False(t, RaceControlAllowed(optionMap{OptRaceControl: "0"}))
	assert.True(t, RaceControlAllowed(optionMap{OptRaceControl: "1"}))
}

func TestFormatLapTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want string
		d    time.Duration
	}{
		{want: "0:00.000", d: 0},
		{want: "0:01.500", d: 1500 * time.Millisecond},
		{want: "0:21.004", d: 21004 * time.Millisecond},
		{want: "1:02.345", d: 62345 * time.Millisecond},
		{want: "12:00.001", d: 12*time.Minute + time.Millisecond},
		{want: "0:00.000", d: -time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatLapTime(tt.d))
		})
	}
}

func TestOptionNames_Unique(t *testing.T) {
	t.Parallel()

	names := OptionNames()
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		assert.False(t, seen[name], "duplicate option %q", name)
		seen[name] = true
	}
	assert.Contains(t, names, OptRaceControl)
	assert.Len(t, names, 21)
}
