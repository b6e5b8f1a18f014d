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

package osd

import "strings"

// CraftnameLength is the number of characters a craft name can show.
const CraftnameLength = 16

// Hardware is a pilot's video receiver family.
type Hardware string

// Supported hardware families
const (
	// HDZero goggles expose an addressable character grid.
	HDZero Hardware = "hdzero"
	// BetaflightCraftname has no OSD rows. Text replaces the craft name
	// Betaflight draws on the pilot's screen.
	BetaflightCraftname Hardware = "betaflight_craftname"
	// Unsupported disables OSD output for a pilot.
	Unsupported Hardware = "none"
)

type geometry struct {
	rows    int
	columns int
}

var geometries = map[Hardware]geometry{
	HDZero:              {rows: 18, columns: 50},
	BetaflightCraftname: {},
}

// ParseHardware maps a stored hardware attribute to a family. Unknown or
// empty values return Unsupported and false.
func ParseHardware(value string) (Hardware, bool) {
	hw := Hardware(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := geometries[hw]; !ok {
		return Unsupported, false
	}
	return hw, true
}

// Supported reports whether the family can show anything
func (h Hardware) Supported() bool {
	_, ok := geometries[h]
	return ok
}

// RowAddressable reports whether text can be placed at a row and column
func (h Hardware) RowAddressable() bool {
	return geometries[h].columns > 0
}

// Rows returns the row count, 0 for families without a grid
func (h Hardware) Rows() int {
	return geometries[h].rows
}

// MaxRows returns the largest row count of any supported family. Row
// settings at or above it cannot be shown anywhere.
func MaxRows() int {
	most := 0
	for _, g := range geometries {
		most = max(most, g.rows)
	}
	return most
}

// Columns returns the row width in characters, 0 for families without a grid
func (h Hardware) Columns() int {
	return geometries[h].columns
}
