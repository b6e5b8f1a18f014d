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

// Package detection enumerates serial ports that may host a backpack.
package detection

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Candidate is a serial port worth probing
type Candidate struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
}

// Options controls which ports are returned
type Options struct {
	// Blocklist holds VID:PID entries never probed. Entries may use any
	// format ParseVIDPID understands.
	Blocklist []string
	// IgnorePaths holds device paths never probed.
	IgnorePaths []string
}

// DefaultOptions returns options with the default blocklist and no ignored paths
func DefaultOptions() Options {
	return Options{Blocklist: DefaultBlocklist()}
}

// DefaultBlocklist returns USB devices known not to be backpacks that react
// badly to a 460800 baud probe. Format: VID:PID in hexadecimal.
func DefaultBlocklist() []string {
	return []string{}
}

// ListCandidates returns every serial port not filtered out by opts, USB
// devices first. The backpack is always USB attached, so this shortens
// discovery on hosts with on-board UARTs.
func ListCandidates(_ context.Context, opts *Options) ([]Candidate, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Debug().Err(err).Msg("detailed port enumeration failed, falling back to names")
		return listByName(opts)
	}

	candidates := make([]Candidate, 0, len(details))
	for _, d := range details {
		c := Candidate{
			Path:         d.Name,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
			IsUSB:        d.IsUSB,
		}
		if d.IsUSB && d.VID != "" && d.PID != "" {
			c.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		if skip(c, opts) {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].IsUSB && !candidates[j].IsUSB
	})
	return candidates, nil
}

func listByName(opts *Options) ([]Candidate, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		c := Candidate{Path: name}
		if skip(c, opts) {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func skip(c Candidate, opts *Options) bool {
	if IsPathIgnored(c.Path, opts.IgnorePaths) {
		log.Debug().Str("port", c.Path).Msg("skipping ignored port")
		return true
	}
	if c.VIDPID != "" && IsBlocked(c.VIDPID, opts.Blocklist) {
		log.Debug().Str("port", c.Path).Str("vidpid", c.VIDPID).Msg("skipping blocklisted device")
		return true
	}
	return false
}

// IsBlocked reports whether vidpid matches a blocklist entry.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	if vidpid == "" {
		return false
	}

	for _, entry := range blocklist {
		normalized := ParseVIDPID(entry)
		if normalized == "" {
			normalized = strings.ToUpper(strings.TrimSpace(entry))
		}
		if vidpid == normalized {
			return true
		}
	}
	return false
}

// ParseVIDPID normalizes "VID:10C4 PID:EA60", "vid=10c4 pid=ea60" or
// "10c4:ea60" to "10C4:EA60". It returns "" when no pair is found.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(strings.TrimSpace(descriptor))

	vid := hexAfter(descriptor, "VID:", "VID=", "VENDOR=")
	pid := hexAfter(descriptor, "PID:", "PID=", "PRODUCT=")
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	if parts := strings.Split(descriptor, ":"); len(parts) == 2 && isHex(parts[0]) && isHex(parts[1]) {
		return descriptor
	}
	return ""
}

// hexAfter returns the hex digits following the first matching prefix.
func hexAfter(s string, prefixes ...string) string {
	for _, prefix := range prefixes {
		idx := strings.Index(s, prefix)
		if idx < 0 {
			continue
		}
		rest := s[idx+len(prefix):]
		end := 0
		for end < len(rest) && isHex(rest[end:end+1]) {
			end++
		}
		if end > 0 {
			return rest[:end]
		}
	}
	return ""
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// IsPathIgnored reports whether devicePath matches an ignore entry, comparing
// cleaned, case-folded paths.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}

	device := strings.ToLower(filepath.Clean(devicePath))
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if device == strings.ToLower(filepath.Clean(ignore)) {
			return true
		}
	}
	return false
}
