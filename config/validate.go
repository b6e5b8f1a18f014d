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

package config

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-elrsbackpack/osd"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration and fills in defaults
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	if cfg.Link.BaudRate < 0 {
		return fmt.Errorf("%w: link.baud_rate must be >= 0", ErrInvalid)
	}
	if cfg.Link.QueueSize < 0 {
		return fmt.Errorf("%w: link.queue_size must be >= 0", ErrInvalid)
	}
	if cfg.Link.BootDelayMS < 0 || cfg.Link.MaxWriteErrors < 0 {
		return fmt.Errorf("%w: link timings must be >= 0", ErrInvalid)
	}

	pilots := make(map[int]bool, len(cfg.Pilots))
	for i, p := range cfg.Pilots {
		if p.ID <= 0 {
			return fmt.Errorf("%w: pilots[%d].id must be > 0", ErrInvalid, i)
		}
		if pilots[p.ID] {
			return fmt.Errorf("%w: duplicate pilot id %d", ErrInvalid, p.ID)
		}
		if p.Callsign == "" {
			return fmt.Errorf("%w: pilot %d has no callsign", ErrInvalid, p.ID)
		}
		// Unknown hardware is allowed: it disables the OSD for that pilot.
		if p.Hardware == "" {
			cfg.Pilots[i].Hardware = string(osd.Unsupported)
		}
		pilots[p.ID] = true
	}

	heats := make(map[int]bool, len(cfg.Heats))
	for i, h := range cfg.Heats {
		if h.ID <= 0 {
			return fmt.Errorf("%w: heats[%d].id must be > 0", ErrInvalid, i)
		}
		if heats[h.ID] {
			return fmt.Errorf("%w: duplicate heat id %d", ErrInvalid, h.ID)
		}
		for _, id := range h.Pilots {
			if !pilots[id] {
				return fmt.Errorf("%w: heat %d references unknown pilot %d", ErrInvalid, h.ID, id)
			}
		}
		heats[h.ID] = true
	}

	return nil
}
