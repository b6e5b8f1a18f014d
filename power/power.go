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

// Package power restarts the backpack by pulsing the GPIO line wired to its
// enable pin.
package power

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	// DefaultPin is physical pin 11 on a Raspberry Pi header.
	DefaultPin = "GPIO17"
	// DefaultPulse is how long the backpack is held off.
	DefaultPulse = time.Second
)

// ErrPinNotFound is returned when the GPIO registry has no such pin.
var ErrPinNotFound = errors.New("gpio pin not found")

// Output is the part of gpio.PinOut the cycler drives.
type Output interface {
	Out(l gpio.Level) error
	String() string
}

// Cycler power cycles the backpack through one output pin.
type Cycler struct {
	pin   Output
	pulse time.Duration
	mu    sync.Mutex
}

// New initializes the host drivers and looks up pinName.
func New(pinName string) (*Cycler, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, pinName)
	}

	// The backpack runs while the line is high.
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to drive %s high: %w", pinName, err)
	}
	return NewWithPin(pin, DefaultPulse), nil
}

// NewWithPin creates a cycler on an already configured pin
func NewWithPin(pin Output, pulse time.Duration) *Cycler {
	return &Cycler{pin: pin, pulse: pulse}
}

// Cycle drives the pin low for the pulse time and back high. The pin is
// driven high again even when ctx ends during the pulse.
func (c *Cycler) Cycle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Info().Str("pin", c.pin.String()).Dur("pulse", c.pulse).Msg("power cycling backpack")

	if err := c.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to drive %s low: %w", c.pin, err)
	}

	timer := time.NewTimer(c.pulse)
	defer timer.Stop()

	var waitErr error
	select {
	case <-ctx.Done():
		waitErr = ctx.Err()
	case <-timer.C:
	}

	if err := c.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to drive %s high: %w", c.pin, err)
	}
	return waitErr
}
