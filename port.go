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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ZaparooProject/go-elrsbackpack/detection"
	"go.bug.st/serial"
)

// Port is an open serial device. Read must return (0, nil) when the read
// timeout expires without data, which is what go.bug.st/serial does.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// PortOpener opens the named serial device using the link configuration.
type PortOpener func(name string, config *Config) (Port, error)

// PortLister returns the serial devices to probe, in order.
type PortLister func(ctx context.Context, config *Config) ([]string, error)

// SerialOpener opens a real serial port: fixed baud, 8 data bits, no parity,
// one stop bit and a short read timeout. No flow control is configured. A
// port held by another process fails with a transient LinkError.
func SerialOpener(name string, config *Config) (Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortBusy {
			return nil, NewLinkError("open", name, err, ErrorTypeTransient)
		}
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(config.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return port, nil
}

// SystemPorts lists candidate ports through the detection package, unless
// the configuration pins an explicit list.
func SystemPorts(ctx context.Context, config *Config) ([]string, error) {
	if len(config.Ports) > 0 {
		return append([]string(nil), config.Ports...), nil
	}

	candidates, err := detection.ListCandidates(ctx, &detection.Options{
		Blocklist:   config.Blocklist,
		IgnorePaths: config.IgnorePaths,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Path)
	}
	return names, nil
}
