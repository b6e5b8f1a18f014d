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
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	backpack "github.com/ZaparooProject/go-elrsbackpack"
	"github.com/ZaparooProject/go-elrsbackpack/internal/retry"
	"github.com/ZaparooProject/go-elrsbackpack/msp"
	"github.com/ZaparooProject/go-elrsbackpack/osd"
	"github.com/rs/zerolog/log"
)

// Operator messages
const (
	BindModeMessage  = "Activating backpack's bind mode..."
	WiFiModeMessage  = "Turning on backpack's wifi..."
	CycleDoneMessage = "Cycle Complete"
	NoPowerMessage   = "Backpack power control is not available"
	TestOSDMessage   = "ROTORHAZARD"
)

// Result summary layout
const (
	roundLabel         = "ROUND"
	resultsLabelColumn = 11
	resultsValueColumn = 30
	resultsFirstRow    = 10
)

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithOptionLookup sets the source of OSD settings
func WithOptionLookup(opts OptionLookup) ControllerOption {
	return func(c *Controller) {
		c.options = opts
	}
}

// WithNotifier sets where operator messages go
func WithNotifier(n backpack.Notifier) ControllerOption {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithPacer sets the receiver of pacing settings
func WithPacer(p Pacer) ControllerOption {
	return func(c *Controller) {
		c.pacer = p
	}
}

// WithPowerCycler enables Reboot
func WithPowerCycler(p PowerCycler) ControllerOption {
	return func(c *Controller) {
		c.power = p
	}
}

// WithPool replaces the default worker pool. The controller starts and
// stops the pool it is given.
func WithPool(p *Pool) ControllerOption {
	return func(c *Controller) {
		c.pool = p
	}
}

// Controller reacts to race events by updating the pilots' OSDs.
type Controller struct {
	composer *osd.Composer
	roster   Roster
	options  OptionLookup
	notifier backpack.Notifier
	pacer    Pacer
	power    PowerCycler
	pool     *Pool
	heat     HeatAssignment
	finished map[int]bool
	settings Settings
	mu       sync.Mutex
}

// NewController creates a controller writing through composer
func NewController(composer *osd.Composer, roster Roster, opts ...ControllerOption) *Controller {
	c := &Controller{
		composer: composer,
		roster:   roster,
		notifier: backpack.LogNotifier{},
		heat:     make(HeatAssignment),
		finished: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pool == nil {
		c.pool = NewPool(DefaultWorkers, DefaultBacklog)
	}
	c.settings = LoadSettings(c.options)
	return c
}

// Start runs the worker pool and applies the current settings
func (c *Controller) Start(ctx context.Context) error {
	if err := c.pool.Start(ctx); err != nil {
		return err
	}
	c.ReloadSettings()
	return nil
}

// Stop cancels pending work. Sessions already running still unbind.
func (c *Controller) Stop() {
	c.pool.Stop()
}

// Wait blocks until all submitted work has finished
func (c *Controller) Wait() {
	c.pool.Wait()
}

// Settings returns the settings in effect
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Assignment returns a copy of the current heat assignment
func (c *Controller) Assignment() HeatAssignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heat.clone()
}

// ReloadSettings rereads every option and pushes rows and pacing to the
// composer and link.
func (c *Controller) ReloadSettings() {
	settings := LoadSettings(c.options)

	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()

	c.composer.SetRows(settings.Rows)
	if c.pacer != nil {
		c.pacer.SetPacing(settings.SendDelay, settings.RepeatCount)
	}
}

// RemoteControl adapts host to the link's inbound monitor. Remote stage and
// stop are allowed only while the race_control option is on.
func (c *Controller) RemoteControl(host RaceHost) backpack.RaceControl {
	return remoteControl{RaceHost: host, options: c.options}
}

type remoteControl struct {
	RaceHost
	options OptionLookup
}

func (r remoteControl) ExternalControlAllowed() bool {
	return RaceControlAllowed(r.options)
}

// HeatSet rebuilds the assignment for a newly selected heat.
func (c *Controller) HeatSet(heatID int) {
	assignment := BuildAssignment(c.roster, heatID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.heat = assignment
}

// PilotAlter refreshes one pilot's receiver if they are in the current heat.
func (c *Controller) PilotAlter(pilotID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.heat[pilotID]; !ok {
		return
	}
	c.heat[pilotID] = resolveTarget(c.roster, pilotID)
}

// RaceStage reloads settings, clears any leftover address and tells every
// pilot to arm, with the heat name when enabled.
func (c *Controller) RaceStage(heatID int) {
	c.ReloadSettings()
	if err := c.composer.Unbind(); err != nil {
		log.Error().Err(err).Msg("failed to clear receiver address")
	}

	c.mu.Lock()
	c.finished = make(map[int]bool)
	if len(c.heat) == 0 {
		c.heat = BuildAssignment(c.roster, heatID)
	}
	settings := c.settings
	c.mu.Unlock()

	raceName := ""
	if settings.HeatName {
		raceName = c.raceName(heatID)
	}

	c.each(false, "stage", func(ctx context.Context, target osd.Target) {
		c.session(ctx, target, func(s *osd.Screen) error {
			if err := s.Status(settings.StageMessage, true, false); err != nil {
				return err
			}
			if raceName == "" {
				return nil
			}
			if err := s.Pause(); err != nil {
				return err
			}
			return s.Announcement(raceName, false)
		})
	})
}

// raceName builds the heat announcement, or "" when the class or heat has
// no name.
func (c *Controller) raceName(heatID int) string {
	heat, ok := c.roster.Heat(heatID)
	if !ok || heat.Name == "" || heat.ClassName == "" {
		return ""
	}

	class := strings.ToUpper(heat.ClassName)
	name := strings.ToUpper(heat.Name)
	if round := heat.Rounds + 1; round > 1 {
		return fmt.Sprintf(">> %s | %s | %s %d <<", class, name, roundLabel, round)
	}
	return fmt.Sprintf(">> %s | %s <<", class, name)
}

// RaceStart shows the start message, then clears it for good.
func (c *Controller) RaceStart() {
	settings := c.Settings()
	c.each(false, "start", func(ctx context.Context, target osd.Target) {
		c.hold(ctx, target, settings.StartUptime,
			func(s *osd.Screen) error { return s.Status(settings.StartMessage, true, false) },
			func(s *osd.Screen) error { return s.ClearStatus(false) })
	})
}

// RaceFinish tells pilots still flying to finish their lap.
func (c *Controller) RaceFinish() {
	settings := c.Settings()
	c.each(true, "finish", func(ctx context.Context, target osd.Target) {
		c.hold(ctx, target, settings.FinishUptime,
			func(s *osd.Screen) error { return s.Status(settings.FinishMessage, false, false) },
			func(s *osd.Screen) error { return s.ClearStatus(true) })
	})
}

// RaceStop tells pilots still flying to land.
func (c *Controller) RaceStop() {
	settings := c.Settings()
	c.each(true, "stop", func(ctx context.Context, target osd.Target) {
		c.session(ctx, target, func(s *osd.Screen) error {
			return s.Status(settings.StopMessage, false, false)
		})
	})
}

// LapRecorded updates the lap counter of every pilot still racing and shows
// the crossing pilot their lap time or gap.
func (c *Controller) LapRecorded(ev LapRecorded) {
	c.mu.Lock()
	if len(c.heat) == 0 {
		c.mu.Unlock()
		return
	}
	if ev.PilotDone {
		c.finished[ev.PilotID] = true
	}
	settings := c.settings
	heatSize := len(c.heat)

	type job struct {
		target osd.Target
		result Result
		lap    bool
		gap    bool
	}
	var jobs []job
	for _, result := range ev.Results {
		target := c.heat[result.PilotID]
		if target == nil {
			continue
		}
		jobs = append(jobs, job{
			target: *target,
			result: result,
			lap:    !c.finished[result.PilotID],
			gap:    result.PilotID == ev.PilotID && result.Laps > 0,
		})
	}
	c.mu.Unlock()

	for _, j := range jobs {
		if j.lap {
			message := lapMessage(settings, heatSize, j.result)
			c.submit("lap", j.target, func(ctx context.Context, target osd.Target) {
				c.session(ctx, target, func(s *osd.Screen) error {
					return s.CurrentLap(message, true)
				})
			})
		}
		if j.gap {
			message := resultsMessage(settings, heatSize, ev.Gap)
			c.submit("lap results", j.target, func(ctx context.Context, target osd.Target) {
				c.hold(ctx, target, settings.ResultsUptime,
					func(s *osd.Screen) error { return s.LapResults(message, false) },
					func(s *osd.Screen) error { return s.ClearLapResults(true) })
			})
		}
	}
}

func lapMessage(settings Settings, heatSize int, result Result) string {
	if !settings.PositionMode || heatSize == 1 {
		return fmt.Sprintf("LAP: %d", result.Laps+1)
	}
	return fmt.Sprintf("POSN: %d | LAP: %d", result.Position, result.Laps+1)
}

func resultsMessage(settings Settings, heatSize int, gap Gap) string {
	switch {
	case !settings.GapMode || heatSize == 1:
		return fmt.Sprintf(">> LAP %d | %s <<", gap.LapNumber, FormatLapTime(gap.LastLapTime))
	case gap.NextRank != nil && gap.NextRank.Position > 0:
		return fmt.Sprintf(">> %s | +%s <<",
			strings.ToUpper(gap.NextRank.Callsign), FormatLapTime(gap.NextRank.DiffTime))
	default:
		return settings.LeaderMessage
	}
}

// LapDelete wipes every OSD so stale results disappear. Only active in
// results mode.
func (c *Controller) LapDelete() {
	if !c.Settings().ResultsMode {
		return
	}
	c.wipeAll("lap delete")
}

// LapsClear forgets finished pilots and wipes every OSD.
func (c *Controller) LapsClear() {
	c.mu.Lock()
	c.finished = make(map[int]bool)
	c.mu.Unlock()
	c.wipeAll("laps clear")
}

func (c *Controller) wipeAll(name string) {
	c.each(false, name, func(ctx context.Context, target osd.Target) {
		c.session(ctx, target, func(s *osd.Screen) error {
			return s.Clear(false)
		})
	})
}

// PilotDone shows the finished pilot their result summary.
func (c *Controller) PilotDone(ev PilotDone) {
	c.mu.Lock()
	target := c.heat[ev.PilotID]
	settings := c.settings
	c.mu.Unlock()
	if target == nil {
		return
	}

	for _, result := range ev.Results {
		if result.PilotID != ev.PilotID {
			continue
		}
		c.submit("pilot done", *target, func(ctx context.Context, target osd.Target) {
			c.hold(ctx, target, settings.FinishUptime,
				func(s *osd.Screen) error { return showResults(s, settings, result) },
				func(s *osd.Screen) error { return s.ClearStatus(false) })
		})
		return
	}
}

func showResults(s *osd.Screen, settings Settings, result Result) error {
	if s.Hardware() != osd.BetaflightCraftname {
		if err := s.ClearCurrentLap(true); err != nil {
			return err
		}
	}
	if err := s.Status(settings.PilotDoneMessage, false, false); err != nil {
		return err
	}
	if !settings.ResultsMode {
		return nil
	}

	lines := [][2]string{
		{"PLACEMENT:", strconv.Itoa(result.Position)},
		{"LAPS COMPLETED:", strconv.Itoa(result.Laps)},
		{"FASTEST LAP:", result.FastestLap},
		{fmt.Sprintf("FASTEST %d CONSEC:", result.ConsecutivesBase), result.Consecutives},
		{"TOTAL TIME:", result.TotalTime},
	}
	for i, line := range lines {
		row := resultsFirstRow + i
		if i > 0 {
			if err := s.Pause(); err != nil {
				return err
			}
		}
		if err := s.Write(row, resultsLabelColumn, line[0], false); err != nil {
			return err
		}
		if err := s.Pause(); err != nil {
			return err
		}
		if err := s.Write(row, resultsValueColumn, line[1], false); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage broadcasts an announcement to every pilot for the configured time.
func (c *Controller) SendMessage(message string) {
	settings := c.Settings()
	c.each(false, "message", func(ctx context.Context, target osd.Target) {
		c.hold(ctx, target, settings.AnnouncementUptime,
			func(s *osd.Screen) error { return s.Announcement(message, false) },
			func(s *osd.Screen) error { return s.ClearAnnouncement(true) })
	})
}

// ActivateBind puts the backpack into bind mode.
func (c *Controller) ActivateBind() error {
	c.notifier.Notify(BindModeMessage)
	return c.composer.Command(msp.NewRequest(msp.FuncBackpackSetMode, msp.ModeBind))
}

// ActivateWiFi starts the backpack's WiFi access point.
func (c *Controller) ActivateWiFi() error {
	c.notifier.Notify(WiFiModeMessage)
	return c.composer.Command(msp.NewRequest(msp.FuncBackpackSetMode, msp.ModeWiFi))
}

// TestOSD flashes a test name on every craftname receiver bound to the
// backpack itself.
func (c *Controller) TestOSD() bool {
	return c.pool.Submit("test osd", func(ctx context.Context) {
		err := c.composer.Broadcast(ctx, osd.BetaflightCraftname, func(s *osd.Screen) error {
			return s.Write(0, 0, TestOSDMessage, false)
		})
		if err != nil {
			log.Error().Err(err).Msg("OSD test failed")
			return
		}
		if err := retry.Sleep(ctx, osd.CraftnamePause); err != nil {
			return
		}
		err = c.composer.Broadcast(ctx, osd.BetaflightCraftname, func(s *osd.Screen) error {
			return s.Clear(true)
		})
		if err != nil {
			log.Error().Err(err).Msg("OSD test failed")
		}
	})
}

// Reboot power cycles the backpack.
func (c *Controller) Reboot(ctx context.Context) error {
	if c.power == nil {
		c.notifier.Alert(NoPowerMessage)
		return fmt.Errorf("reboot: %s", NoPowerMessage)
	}
	if err := c.power.Cycle(ctx); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	c.notifier.Notify(CycleDoneMessage)
	return nil
}

// each submits fn for every assigned pilot, skipping finished pilots when
// skipFinished is set.
func (c *Controller) each(skipFinished bool, name string, fn func(context.Context, osd.Target)) {
	c.mu.Lock()
	targets := make([]osd.Target, 0, len(c.heat))
	for id, target := range c.heat {
		if target == nil || (skipFinished && c.finished[id]) {
			continue
		}
		targets = append(targets, *target)
	}
	c.mu.Unlock()

	for _, target := range targets {
		c.submit(name, target, fn)
	}
}

func (c *Controller) submit(name string, target osd.Target, fn func(context.Context, osd.Target)) {
	c.pool.Submit(name, func(ctx context.Context) {
		fn(ctx, target)
	})
}

// session runs one OSD update and logs its failure.
func (c *Controller) session(ctx context.Context, target osd.Target, fn func(*osd.Screen) error) {
	if err := c.composer.Session(ctx, target, fn); err != nil {
		log.Error().Err(err).Stringer("uid", target.UID).Msg("OSD update failed")
	}
}

// hold shows something, waits d outside any session, then runs reset.
func (c *Controller) hold(ctx context.Context, target osd.Target, d time.Duration, show, reset func(*osd.Screen) error) {
	c.session(ctx, target, show)
	if err := retry.Sleep(ctx, d); err != nil {
		return
	}
	c.session(ctx, target, reset)
}
