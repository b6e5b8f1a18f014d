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
	"errors"
	"fmt"
)

// Link errors
var (
	ErrNoBackpack        = errors.New("no backpack answered on any serial port")
	ErrNoCandidates      = errors.New("no serial ports available")
	ErrBadResponse       = errors.New("short or missing handshake response")
	ErrUnrecognized      = errors.New("unrecognized handshake response marker")
	ErrUnexpectedDevice  = errors.New("unexpected device on serial port")
	ErrLinkClosed        = errors.New("backpack link closed")
	ErrAlreadyStarted    = errors.New("connector already started")
	ErrPortClosed        = errors.New("serial port closed")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrTooManyWriteFails = errors.New("too many consecutive write failures")
)

// ErrorType classifies link failures
type ErrorType int

const (
	// ErrorTypePermanent failures end the use of a port.
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient failures are counted and tolerated up to a budget.
	ErrorTypeTransient
)

// String returns the error type name
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// LinkError describes a failed operation on a serial port
type LinkError struct {
	Err  error
	Op   string
	Port string
	Type ErrorType
}

// NewLinkError creates a LinkError
func NewLinkError(op, port string, err error, errType ErrorType) *LinkError {
	return &LinkError{Op: op, Port: port, Err: err, Type: errType}
}

func (e *LinkError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a LinkError that may succeed on a later attempt
func IsTransient(err error) bool {
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Type == ErrorTypeTransient
	}
	return false
}
