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
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	backpack "github.com/ZaparooProject/go-elrsbackpack"
	"github.com/ZaparooProject/go-elrsbackpack/config"
	"github.com/ZaparooProject/go-elrsbackpack/osd"
	"github.com/ZaparooProject/go-elrsbackpack/race"
	"github.com/abiosoft/ishell"
)

const prompt = "backpack > "

var errUsage = errors.New("wrong number of arguments")

// console holds what the shell commands act on.
type console struct {
	ctx        context.Context
	link       *backpack.Link
	controller *race.Controller
	host       *simHost
	roster     *config.Roster
	options    *config.Options
}

func newShell(con *console) *ishell.Shell {
	shell := ishell.New()
	shell.SetPrompt(prompt)

	for _, cmd := range con.commands() {
		shell.AddCmd(cmd)
	}
	return shell
}

func (con *console) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{Name: "status", Help: "show link and race state", Func: con.status},
		{Name: "heats", Help: "list heats and their pilots", Func: con.heats},
		{Name: "heat", Help: "HEAT - select the heat to race", Func: con.withInt(con.host.SetHeat)},
		{Name: "stage", Help: "[DELAY] - stage the race, starting after DELAY", Func: con.stage},
		{Name: "finish", Help: "end race time", Func: con.run(con.host.FinishRace)},
		{Name: "stop", Help: "stop the race", Func: con.run(con.host.StopRace)},
		{Name: "lap", Aliases: []string{"l"}, Help: "PILOT TIME - record a crossing", Func: con.lap},
		{Name: "dellap", Help: "PILOT - delete a pilot's last lap", Func: con.withInt(con.host.DeleteLap)},
		{Name: "results", Help: "show standings", Func: con.results},
		{Name: "clear", Help: "discard laps and return to ready", Func: con.clear(false)},
		{Name: "save", Help: "save the round and return to ready", Func: con.clear(true)},
		{Name: "msg", Help: "TEXT - announce to every pilot", Func: con.message},
		{Name: "hardware", Help: "PILOT HARDWARE - change a pilot's OSD hardware", Func: con.hardware},
		{Name: "bind", Help: "put the backpack in bind mode", Func: con.run(con.controller.ActivateBind)},
		{Name: "wifi", Help: "start the backpack's wifi", Func: con.run(con.controller.ActivateWiFi)},
		{Name: "test", Help: "flash a test message on craftname receivers", Func: con.testOSD},
		{Name: "reboot", Help: "power cycle the backpack", Func: con.run(func() error {
			return con.controller.Reboot(con.ctx)
		})},
		{Name: "options", Help: "list OSD options", Func: con.listOptions},
		{Name: "set", Help: "NAME VALUE - change an OSD option", Func: con.setOption},
	}
}

func (con *console) run(action func() error) func(*ishell.Context) {
	return func(c *ishell.Context) {
		if err := action(); err != nil {
			c.Err(err)
		}
	}
}

func (con *console) withInt(action func(int) error) func(*ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) != 1 {
			c.Err(errUsage)
			return
		}
		n, err := strconv.Atoi(c.Args[0])
		if err != nil {
			c.Err(err)
			return
		}
		if err := action(n); err != nil {
			c.Err(err)
		}
	}
}

func (con *console) status(c *ishell.Context) {
	state := con.link.State()
	c.Printf("link:    %s", state)
	if state == backpack.StateConnected {
		c.Printf(" (%s, version %q)", con.link.PortName(), con.link.Version())
	}
	c.Println()
	delay, repeat := con.link.Pacing()
	c.Printf("queue:   %d pending, delay %s, repeat %d\n", con.link.QueueLength(), delay, repeat)
	c.Printf("race:    %s\n", con.host.RaceStatus())
	c.Printf("heat:    %d\n", con.host.HeatID())
	for id, target := range con.controller.Assignment() {
		if target == nil {
			c.Printf("pilot %d: no OSD\n", id)
			continue
		}
		c.Printf("pilot %d: %s %s\n", id, target.Hardware, target.UID)
	}
}

func (con *console) heats(c *ishell.Context) {
	for _, id := range con.roster.HeatIDs() {
		heat, _ := con.roster.Heat(id)
		names := make([]string, 0)
		for _, pilotID := range con.roster.HeatPilots(id) {
			if pilot, ok := con.roster.Pilot(pilotID); ok {
				names = append(names, fmt.Sprintf("%d:%s", pilot.ID, pilot.Callsign))
			}
		}
		c.Printf("%d  %-12s %-10s round %d  %s\n",
			id, heat.Name, heat.ClassName, heat.Rounds+1, strings.Join(names, " "))
	}
}

func (con *console) stage(c *ishell.Context) {
	delay := backpack.RaceStartDelay
	if len(c.Args) > 0 {
		d, err := parseSeconds(c.Args[0])
		if err != nil {
			c.Err(err)
			return
		}
		delay = d
	}
	if err := con.host.StageRace(delay); err != nil {
		c.Err(err)
	}
}

func (con *console) lap(c *ishell.Context) {
	if len(c.Args) != 2 {
		c.Err(errUsage)
		return
	}
	pilotID, err := strconv.Atoi(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	lapTime, err := parseSeconds(c.Args[1])
	if err != nil {
		c.Err(err)
		return
	}
	if err := con.host.RecordLap(pilotID, lapTime); err != nil {
		c.Err(err)
	}
}

func (con *console) results(c *ishell.Context) {
	for _, r := range con.host.Results() {
		c.Printf("%d. %-12s laps %d  fastest %s  %d consec %s  total %s\n",
			r.Position, r.Callsign, r.Laps, r.FastestLap, r.ConsecutivesBase, r.Consecutives, r.TotalTime)
	}
}

func (con *console) clear(save bool) func(*ishell.Context) {
	return con.run(func() error {
		return con.host.ClearLaps(save)
	})
}

func (con *console) message(c *ishell.Context) {
	if len(c.Args) == 0 {
		c.Err(errUsage)
		return
	}
	con.controller.SendMessage(strings.Join(c.Args, " "))
}

func (con *console) hardware(c *ishell.Context) {
	if len(c.Args) != 2 {
		c.Err(errUsage)
		return
	}
	pilotID, err := strconv.Atoi(c.Args[0])
	if err != nil {
		c.Err(err)
		return
	}
	hw, ok := osd.ParseHardware(c.Args[1])
	if !ok {
		c.Printf("hardware %q has no OSD support\n", c.Args[1])
	}
	if !con.roster.SetHardware(pilotID, string(hw)) {
		c.Err(fmt.Errorf("unknown pilot %d", pilotID))
		return
	}
	con.controller.PilotAlter(pilotID)
}

func (con *console) testOSD(c *ishell.Context) {
	if !con.controller.TestOSD() {
		c.Err(errors.New("worker backlog is full"))
	}
}

func (con *console) listOptions(c *ishell.Context) {
	for _, name := range race.OptionNames() {
		value, ok := con.options.Option(name)
		if !ok {
			value = "(default)"
		}
		c.Printf("%-22s %s\n", name, value)
	}
}

func (con *console) setOption(c *ishell.Context) {
	if len(c.Args) < 2 {
		c.Err(errUsage)
		return
	}
	con.options.Set(c.Args[0], strings.Join(c.Args[1:], " "))
	con.controller.ReloadSettings()
}

// parseSeconds accepts a Go duration ("1m2.5s") or plain seconds ("62.5").
func parseSeconds(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return d, nil
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
