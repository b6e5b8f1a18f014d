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

package backpack

import (
	"fmt"
	"time"
)

// Config contains the serial and pacing settings of a Link
type Config struct {
	// Ports pins the discovery candidates. Empty means enumerate the system.
	Ports []string
	// IgnorePaths are device paths discovery must never open.
	IgnorePaths []string
	// Blocklist holds VID:PID pairs discovery must skip.
	Blocklist []string
	// BaudRate of the backpack serial link.
	BaudRate int
	// ReadTimeout bounds every read so polling never blocks.
	ReadTimeout time.Duration
	// BootDelay is waited after opening a candidate, since some boards reset
	// on open and ignore input until they have booted.
	BootDelay time.Duration
	// IdleInterval is slept at the end of every connector iteration.
	IdleInterval time.Duration
	// SendDelay is slept before each queued message is written.
	SendDelay time.Duration
	// QueueSize is the outbound queue capacity.
	QueueSize int
	// MaxWriteErrors is the number of consecutive write failures tolerated.
	// One more closes the link.
	MaxWriteErrors int
	// RepeatCount is the number of extra copies sent of every OSD content frame.
	RepeatCount int
}

// DefaultConfig returns the settings used by the ExpressLRS backpack firmware
func DefaultConfig() *Config {
	return &Config{
		BaudRate:       460800,
		ReadTimeout:    10 * time.Millisecond,
		BootDelay:      1500 * time.Millisecond,
		IdleInterval:   10 * time.Millisecond,
		SendDelay:      50 * time.Millisecond,
		QueueSize:      200,
		MaxWriteErrors: 5,
	}
}

// Option is a functional option for configuring a Link
type Option func(*Link) error

// WithConfig replaces the whole configuration
func WithConfig(config *Config) Option {
	return func(l *Link) error {
		if config == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidParameter)
		}
		cfg := *config
		l.config = &cfg
		return nil
	}
}

// WithPorts pins the candidate ports probed during discovery
func WithPorts(ports ...string) Option {
	return func(l *Link) error {
		l.config.Ports = append([]string(nil), ports...)
		return nil
	}
}

// WithBaudRate sets the serial baud rate
func WithBaudRate(baud int) Option {
	return func(l *Link) error {
		if baud <= 0 {
			return fmt.Errorf("%w: baud rate %d", ErrInvalidParameter, baud)
		}
		l.config.BaudRate = baud
		return nil
	}
}

// WithReadTimeout sets the per-read timeout
func WithReadTimeout(timeout time.Duration) Option {
	return func(l *Link) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: read timeout %v", ErrInvalidParameter, timeout)
		}
		l.config.ReadTimeout = timeout
		return nil
	}
}

// WithBootDelay sets how long to wait after opening a port before the handshake
func WithBootDelay(delay time.Duration) Option {
	return func(l *Link) error {
		l.config.BootDelay = delay
		return nil
	}
}

// WithIdleInterval sets the connector loop idle sleep
func WithIdleInterval(interval time.Duration) Option {
	return func(l *Link) error {
		l.config.IdleInterval = interval
		return nil
	}
}

// WithQueueSize sets the outbound queue capacity
func WithQueueSize(size int) Option {
	return func(l *Link) error {
		if size <= 0 {
			return fmt.Errorf("%w: queue size %d", ErrInvalidParameter, size)
		}
		l.config.QueueSize = size
		return nil
	}
}

// WithMaxWriteErrors sets the consecutive write failure budget
func WithMaxWriteErrors(maxErrors int) Option {
	return func(l *Link) error {
		if maxErrors < 0 {
			return fmt.Errorf("%w: max write errors %d", ErrInvalidParameter, maxErrors)
		}
		l.config.MaxWriteErrors = maxErrors
		return nil
	}
}

// WithPacing sets the initial inter-message delay and OSD repeat count
func WithPacing(delay time.Duration, repeat int) Option {
	return func(l *Link) error {
		if delay < 0 || repeat < 0 {
			return fmt.Errorf("%w: pacing %v/%d", ErrInvalidParameter, delay, repeat)
		}
		l.config.SendDelay = delay
		l.config.RepeatCount = repeat
		return nil
	}
}

// WithPortOpener replaces the serial port opener
func WithPortOpener(opener PortOpener) Option {
	return func(l *Link) error {
		l.opener = opener
		return nil
	}
}

// WithPortLister replaces the candidate port enumeration
func WithPortLister(lister PortLister) Option {
	return func(l *Link) error {
		l.lister = lister
		return nil
	}
}

// WithNotifier sets the operator notification sink
func WithNotifier(notifier Notifier) Option {
	return func(l *Link) error {
		l.notifier = notifier
		return nil
	}
}

// WithInboundHandler sets the receiver of backpack-originated frames
func WithInboundHandler(handler InboundHandler) Option {
	return func(l *Link) error {
		l.inbound = handler
		return nil
	}
}
