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

// Emphasis markers and the glyphs row hardware draws for them.
const (
	markerOpen   = ">>"
	markerClose  = "<<"
	glyphOpen    = "x"
	glyphClose   = "w"
	substitution = '?'
)

// Center returns the column that centers a text of length characters on hw.
// Families without a grid always get column 0.
func Center(length int, hw Hardware) int {
	columns := hw.Columns()
	if columns == 0 {
		return 0
	}
	return max(0, columns/2-length/2)
}

// rowText prepares text for a grid write.
func rowText(text string) string {
	text = strings.ReplaceAll(text, markerOpen, glyphOpen)
	text = strings.ReplaceAll(text, markerClose, glyphClose)
	return strings.TrimSpace(text)
}

// craftnameText strips emphasis markers, which the name field cannot draw.
func craftnameText(text string) string {
	text = strings.ReplaceAll(text, markerOpen, "")
	text = strings.ReplaceAll(text, markerClose, "")
	return strings.TrimSpace(text)
}

// padCraftname centers short text by prepending spaces.
func padCraftname(text string) []rune {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) >= CraftnameLength {
		return runes
	}
	pad := []rune(strings.Repeat(" ", (CraftnameLength-len(runes))/2))
	return append(pad, runes...)
}

// CraftnameSteps returns the successive name frames that show text. Text
// that fits is sent once. Longer text scrolls: each step drops the first
// character until the remainder fits.
func CraftnameSteps(text string) []string {
	var steps []string
	runes := padCraftname(craftnameText(text))
	for {
		steps = append(steps, string(runes[:min(len(runes), CraftnameLength)]))
		if len(runes) <= CraftnameLength {
			return steps
		}
		runes = padCraftname(string(runes[1:]))
	}
}

// encodeText converts text to the single-byte charset of the OSD. Runes
// outside Latin-1 are replaced.
func encodeText(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0xFF {
			r = substitution
		}
		out = append(out, byte(r))
	}
	return out
}
