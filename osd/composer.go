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

// Package osd addresses one pilot's receiver at a time through the backpack
// and lays text out for the receiver's hardware family.
//
// All output for a receiver happens inside a Session. The session binds the
// receiver's address, runs the caller's writes, refreshes the display and
// unbinds on every exit path. Sessions are serialized by a single lock since
// the backpack can only address one receiver at a time.
package osd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-elrsbackpack/msp"
	"github.com/rs/zerolog/log"
)

// Timing of craftname output.
const (
	// ScrollDelay separates the steps of a scrolling craft name.
	ScrollDelay = 400 * time.Millisecond
	// CraftnamePause separates unrelated craft name writes so each is readable.
	CraftnamePause = time.Second
)

// OSD errors
var (
	ErrUnsupportedHardware = errors.New("unsupported OSD hardware")
	ErrSessionClosed       = errors.New("OSD session already ended")
	ErrOutOfRange          = errors.New("position outside the OSD grid")
)

// Sender accepts frames for the backpack. *backpack.Link implements it.
type Sender interface {
	Send(frame msp.Frame) error
}

// Rows holds the configured row of each message class.
type Rows struct {
	Status       int
	CurrentLap   int
	LapResults   int
	Announcement int
}

// DefaultRows returns the row layout used when none is configured
func DefaultRows() Rows {
	return Rows{
		Status:       5,
		CurrentLap:   0,
		LapResults:   15,
		Announcement: 3,
	}
}

// Target is one pilot's receiver.
type Target struct {
	Hardware Hardware
	UID      Identifier
}

// ComposerOption configures a Composer
type ComposerOption func(*Composer)

// WithScrollDelay overrides ScrollDelay
func WithScrollDelay(d time.Duration) ComposerOption {
	return func(c *Composer) {
		c.scrollDelay = d
	}
}

// WithCraftnamePause overrides CraftnamePause
func WithCraftnamePause(d time.Duration) ComposerOption {
	return func(c *Composer) {
		c.craftnamePause = d
	}
}

// Composer serializes OSD sessions and remembers the last persistent text of
// each receiver.
type Composer struct {
	sender         Sender
	persistent     map[Identifier]string
	rows           Rows
	scrollDelay    time.Duration
	craftnamePause time.Duration
	mu             sync.Mutex
	rowsMu         sync.RWMutex
}

// NewComposer creates a composer writing to sender
func NewComposer(sender Sender, rows Rows, opts ...ComposerOption) *Composer {
	c := &Composer{
		sender:         sender,
		persistent:     make(map[Identifier]string),
		rows:           rows,
		scrollDelay:    ScrollDelay,
		craftnamePause: CraftnamePause,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rows returns the current row layout
func (c *Composer) Rows() Rows {
	c.rowsMu.RLock()
	defer c.rowsMu.RUnlock()
	return c.rows
}

// SetRows replaces the row layout. Sessions already running keep theirs.
func (c *Composer) SetRows(rows Rows) {
	c.rowsMu.Lock()
	defer c.rowsMu.Unlock()
	c.rows = rows
}

// Persistent returns the last persistent text shown on uid. It must not be
// called from inside a session.
func (c *Composer) Persistent(uid Identifier) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.persistent[uid]
	return text, ok
}

// Session binds target, runs fn, refreshes the display and unbinds. The
// refresh and unbind are sent even when fn fails or ctx ends. Errors from fn
// are returned; they never leave the receiver bound.
func (c *Composer) Session(ctx context.Context, target Target, fn func(*Screen) error) (err error) {
	if !target.Hardware.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedHardware, target.Hardware)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	screen := c.newScreen(ctx, target, true)
	if err := c.bind(target.UID); err != nil {
		return err
	}
	defer func() {
		screen.closed = true
		err = errors.Join(err, c.send(msp.FuncSetOSD, msp.OSDDisplay), c.unbind())
	}()

	return fn(screen)
}

// Broadcast runs fn without addressing a receiver, so every receiver bound
// to the backpack's own phrase shows the output. Used for link tests. Row
// hardware gets a display refresh afterwards, even when fn fails.
func (c *Composer) Broadcast(ctx context.Context, hw Hardware, fn func(*Screen) error) (err error) {
	if !hw.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedHardware, hw)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	screen := c.newScreen(ctx, Target{Hardware: hw}, false)
	defer func() {
		screen.closed = true
		if hw.RowAddressable() {
			err = errors.Join(err, c.send(msp.FuncSetOSD, msp.OSDDisplay))
		}
	}()
	return fn(screen)
}

// Command sends a non-OSD frame, such as a mode change, between sessions.
func (c *Composer) Command(frame msp.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sender.Send(frame)
}

// Unbind clears any receiver address left on the backpack.
func (c *Composer) Unbind() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unbind()
}

func (c *Composer) newScreen(ctx context.Context, target Target, addressed bool) *Screen {
	return &Screen{
		ctx:       ctx,
		composer:  c,
		target:    target,
		rows:      c.Rows(),
		addressed: addressed,
	}
}

func (c *Composer) bind(uid Identifier) error {
	log.Trace().Stringer("uid", uid).Msg("binding receiver")
	payload := make([]byte, 0, IdentifierLength+1)
	payload = append(payload, 1)
	payload = append(payload, uid[:]...)
	return c.send(msp.FuncSetSendUID, payload...)
}

func (c *Composer) unbind() error {
	return c.send(msp.FuncSetSendUID, 0)
}

func (c *Composer) send(function uint16, payload ...byte) error {
	return c.sender.Send(msp.NewRequest(function, payload...))
}
