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

// Package msp implements the MSP v2 framing used on the backpack serial link.
package msp

// Direction markers. Every frame starts with '$', 'X' and one of these bytes.
const (
	MarkerStart    = '$'
	MarkerVersion  = 'X'
	MarkerRequest  = '<' // host to backpack, or backpack-originated command
	MarkerResponse = '>' // backpack reply to a host request
)

// Frame size limits
const (
	HeaderLength     = 8 // marker(3) + flag(1) + function(2) + length(2)
	ChecksumLength   = 1
	MaxPayloadLength = 0xFFFF
)

// Function codes understood by the ExpressLRS backpack.
const (
	FuncSetName            uint16 = 0x000B
	FuncSetSendUID         uint16 = 0x00B5
	FuncSetOSD             uint16 = 0x00B6
	FuncSetRecordingState  uint16 = 0x0305
	FuncBackpackSetMode    uint16 = 0x0380
	FuncGetBackpackVersion uint16 = 0x0381
)

// Sub-commands carried in the first payload byte of a FuncSetOSD frame.
const (
	OSDClearScreen byte = 0x02
	OSDWriteString byte = 0x03
	OSDDisplay     byte = 0x04
)

// Backpack modes for FuncBackpackSetMode.
const (
	ModeBind byte = 'B'
	ModeWiFi byte = 'W'
)

// Recording state payload values for FuncSetRecordingState.
const (
	RecordingStop  byte = 0x00
	RecordingStart byte = 0x01
)

// RequestMarker and ResponseMarker are the three leading bytes of each direction.
var (
	RequestMarker  = [3]byte{MarkerStart, MarkerVersion, MarkerRequest}
	ResponseMarker = [3]byte{MarkerStart, MarkerVersion, MarkerResponse}
)
