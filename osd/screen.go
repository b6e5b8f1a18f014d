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

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ZaparooProject/go-elrsbackpack/internal/retry"
	"github.com/ZaparooProject/go-elrsbackpack/msp"
)

// namePrefix leads every FuncSetName payload.
const namePrefix byte = 0x01

// blankName is written when a craft name is cleared with nothing to restore.
const blankName = "    "

// Screen is the output surface of one Session. It must not be used after
// the session function returns.
type Screen struct {
	ctx       context.Context
	composer  *Composer
	target    Target
	rows      Rows
	addressed bool
	closed    bool
}

// Hardware returns the family of the bound receiver
func (s *Screen) Hardware() Hardware {
	return s.target.Hardware
}

// Target returns the bound receiver
func (s *Screen) Target() Target {
	return s.target
}

// Pause waits CraftnamePause on craftname hardware so successive names stay
// readable. Row hardware returns immediately.
func (s *Screen) Pause() error {
	if s.target.Hardware != BetaflightCraftname {
		return nil
	}
	return s.sleep(s.composer.craftnamePause)
}

// Status writes the status row, first clearing either the row or, with
// clearFull, the whole screen.
func (s *Screen) Status(text string, clearFull, persistent bool) error {
	if s.target.Hardware.RowAddressable() {
		blank := s.ClearStatus
		if clearFull {
			blank = s.Clear
		}
		if err := blank(true); err != nil {
			return err
		}
	}
	return s.Write(s.rows.Status, Center(utf8.RuneCountInString(text), s.target.Hardware), text, persistent)
}

// CurrentLap replaces the current-lap row
func (s *Screen) CurrentLap(text string, persistent bool) error {
	return s.replaceRow(s.rows.CurrentLap, text, persistent)
}

// LapResults replaces the lap-results row
func (s *Screen) LapResults(text string, persistent bool) error {
	return s.replaceRow(s.rows.LapResults, text, persistent)
}

// Announcement replaces the announcement row
func (s *Screen) Announcement(text string, persistent bool) error {
	return s.replaceRow(s.rows.Announcement, text, persistent)
}

func (s *Screen) replaceRow(row int, text string, persistent bool) error {
	if s.target.Hardware.RowAddressable() {
		if err := s.ClearRow(row, true); err != nil {
			return err
		}
	}
	return s.Write(row, Center(utf8.RuneCountInString(text), s.target.Hardware), text, persistent)
}

// Write places text at row and col. Craftname hardware ignores the position
// and scrolls text longer than CraftnameLength. With persistent set, the
// text is remembered for the bound receiver and shown again by a restoring
// clear.
func (s *Screen) Write(row, col int, text string, persistent bool) error {
	if err := s.check(); err != nil {
		return err
	}

	var remembered string
	if s.target.Hardware.RowAddressable() {
		if err := s.checkPosition(row, col); err != nil {
			return err
		}
		remembered = rowText(text)
		payload := make([]byte, 0, 4+len(remembered))
		payload = append(payload, msp.OSDWriteString, byte(row), byte(col), 0)
		payload = append(payload, encodeText(remembered)...)
		if err := s.composer.send(msp.FuncSetOSD, payload...); err != nil {
			return err
		}
	} else {
		remembered = craftnameText(text)
		for i, step := range CraftnameSteps(text) {
			if i > 0 {
				if err := s.sleep(s.composer.scrollDelay); err != nil {
					return err
				}
			}
			payload := append([]byte{namePrefix}, encodeText(step)...)
			if err := s.composer.send(msp.FuncSetName, payload...); err != nil {
				return err
			}
		}
	}

	if persistent && s.addressed {
		s.composer.persistent[s.target.UID] = remembered
	}
	return nil
}

// Clear blanks the whole screen. On craftname hardware it instead shows the
// receiver's persistent text when restore is set and one exists.
func (s *Screen) Clear(restore bool) error {
	if err := s.check(); err != nil {
		return err
	}

	if s.target.Hardware.RowAddressable() {
		return s.composer.send(msp.FuncSetOSD, msp.OSDClearScreen)
	}

	if restore && s.addressed {
		if text, ok := s.composer.persistent[s.target.UID]; ok && text != "" {
			return s.Write(0, 0, text, false)
		}
	}
	return s.Write(0, 0, blankName, false)
}

// ClearRow blanks one row. Craftname hardware has no rows and behaves like Clear.
func (s *Screen) ClearRow(row int, restore bool) error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.target.Hardware.RowAddressable() {
		return s.Clear(restore)
	}
	if err := s.checkPosition(row, 0); err != nil {
		return err
	}

	payload := make([]byte, 4+s.target.Hardware.Columns())
	payload[0] = msp.OSDWriteString
	payload[1] = byte(row)
	return s.composer.send(msp.FuncSetOSD, payload...)
}

// ClearStatus blanks the status row
func (s *Screen) ClearStatus(restore bool) error {
	return s.ClearRow(s.rows.Status, restore)
}

// ClearCurrentLap blanks the current-lap row
func (s *Screen) ClearCurrentLap(restore bool) error {
	return s.ClearRow(s.rows.CurrentLap, restore)
}

// ClearLapResults blanks the lap-results row
func (s *Screen) ClearLapResults(restore bool) error {
	return s.ClearRow(s.rows.LapResults, restore)
}

// ClearAnnouncement blanks the announcement row
func (s *Screen) ClearAnnouncement(restore bool) error {
	return s.ClearRow(s.rows.Announcement, restore)
}

func (s *Screen) check() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Screen) checkPosition(row, col int) error {
	hw := s.target.Hardware
	if row < 0 || row >= hw.Rows() || col < 0 || col >= hw.Columns() {
		return fmt.Errorf("%w: row %d column %d on %s", ErrOutOfRange, row, col, hw)
	}
	return nil
}

func (s *Screen) sleep(d time.Duration) error {
	return retry.Sleep(s.ctx, d)
}
