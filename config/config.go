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

// Package config loads the backpack controller configuration from YAML.
package config

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	backpack "github.com/ZaparooProject/go-elrsbackpack"
	"github.com/ZaparooProject/go-elrsbackpack/power"
	"github.com/ZaparooProject/go-elrsbackpack/race"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration file
type Config struct {
	Options Options       `yaml:"options"`
	Power   PowerConfig   `yaml:"power"`
	Link    LinkConfig    `yaml:"link"`
	Pilots  []PilotConfig `yaml:"pilots"`
	Heats   []HeatConfig  `yaml:"heats"`
}

// LinkConfig contains serial link settings. Zero values keep the defaults.
type LinkConfig struct {
	Ports          []string `yaml:"ports"`        // probe only these ports
	IgnorePaths    []string `yaml:"ignore_paths"` // never probe these ports
	Blocklist      []string `yaml:"blocklist"`    // VID:PID pairs never probed
	BaudRate       int      `yaml:"baud_rate"`
	BootDelayMS    int      `yaml:"boot_delay_ms"`
	QueueSize      int      `yaml:"queue_size"`
	MaxWriteErrors int      `yaml:"max_write_errors"`
}

// PowerConfig contains the GPIO power control settings
type PowerConfig struct {
	Pin     string `yaml:"pin"`
	Enabled bool   `yaml:"enabled"`
}

// PilotConfig is one pilot of the demo roster
type PilotConfig struct {
	Callsign   string `yaml:"callsign"`
	Hardware   string `yaml:"hardware"` // hdzero, betaflight_craftname, none
	BindPhrase string `yaml:"bind_phrase"`
	ID         int    `yaml:"id"`
}

// HeatConfig is one heat of the demo roster
type HeatConfig struct {
	Name   string `yaml:"name"`
	Class  string `yaml:"class"`
	Pilots []int  `yaml:"pilots"`
	ID     int    `yaml:"id"`
	Rounds int    `yaml:"rounds"`
}

// Default returns a configuration with no roster and default settings
func Default() *Config {
	cfg := &Config{}
	_ = Validate(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML configuration data
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LinkOptions converts the link section to backpack options
func (c *Config) LinkOptions() []backpack.Option {
	defaults := backpack.DefaultConfig()
	cfg := *defaults
	cfg.Ports = c.Link.Ports
	cfg.IgnorePaths = c.Link.IgnorePaths
	cfg.Blocklist = c.Link.Blocklist
	if c.Link.BaudRate > 0 {
		cfg.BaudRate = c.Link.BaudRate
	}
	if c.Link.BootDelayMS > 0 {
		cfg.BootDelay = time.Duration(c.Link.BootDelayMS) * time.Millisecond
	}
	if c.Link.QueueSize > 0 {
		cfg.QueueSize = c.Link.QueueSize
	}
	if c.Link.MaxWriteErrors > 0 {
		cfg.MaxWriteErrors = c.Link.MaxWriteErrors
	}
	return []backpack.Option{backpack.WithConfig(&cfg)}
}

// Roster builds the demo roster
func (c *Config) Roster() *Roster {
	r := &Roster{
		pilots: make(map[int]race.Pilot, len(c.Pilots)),
		heats:  make(map[int]HeatConfig, len(c.Heats)),
	}
	for _, p := range c.Pilots {
		r.pilots[p.ID] = race.Pilot{
			ID:         p.ID,
			Callsign:   p.Callsign,
			Hardware:   p.Hardware,
			BindPhrase: p.BindPhrase,
		}
	}
	for _, h := range c.Heats {
		r.heats[h.ID] = h
	}
	return r
}

// Roster implements race.Roster over the configured heats and pilots.
type Roster struct {
	pilots map[int]race.Pilot
	heats  map[int]HeatConfig
	mu     sync.RWMutex
}

// HeatPilots returns the pilots slotted in a heat
func (r *Roster) HeatPilots(heatID int) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int(nil), r.heats[heatID].Pilots...)
}

// Pilot looks up a pilot by id
func (r *Roster) Pilot(pilotID int) (race.Pilot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pilots[pilotID]
	return p, ok
}

// Heat looks up a heat by id
func (r *Roster) Heat(heatID int) (race.Heat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.heats[heatID]
	if !ok {
		return race.Heat{}, false
	}
	return race.Heat{ID: h.ID, Name: h.Name, ClassName: h.Class, Rounds: h.Rounds}, true
}

// HeatIDs returns every heat id in ascending order
func (r *Roster) HeatIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.heats))
	for id := range r.heats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SetHardware changes a pilot's hardware attribute
func (r *Roster) SetHardware(pilotID int, hardware string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pilots[pilotID]
	if !ok {
		return false
	}
	p.Hardware = hardware
	r.pilots[pilotID] = p
	return true
}

// CompleteRound counts a finished round of a heat
func (r *Roster) CompleteRound(heatID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.heats[heatID]; ok {
		h.Rounds++
		r.heats[heatID] = h
	}
}

// PowerEnabled reports whether GPIO power control is configured
func (c *Config) PowerEnabled() bool {
	return c.Power.Enabled && c.Power.Pin != ""
}

func applyDefaults(cfg *Config) {
	if cfg.Power.Pin == "" {
		cfg.Power.Pin = power.DefaultPin
	}
	if cfg.Options.values == nil {
		cfg.Options.values = make(map[string]string)
	}
}
