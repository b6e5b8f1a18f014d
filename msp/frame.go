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

package msp

import (
	"errors"
	"fmt"
	"io"

	"github.com/sigurn/crc8"
)

// ErrPayloadTooLarge is returned when a payload does not fit the 2-byte length field.
var ErrPayloadTooLarge = errors.New("msp payload exceeds maximum length")

var crcTable = crc8.MakeTable(crc8.CRC8_DVB_S2)

// Direction identifies which marker a frame carries.
type Direction int

const (
	// DirectionRequest frames use the "$X<" marker. The host sends these, and
	// the backpack uses the same marker for commands it originates.
	DirectionRequest Direction = iota
	// DirectionResponse frames use the "$X>" marker and answer a host request.
	DirectionResponse
)

// String returns a readable direction name
func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "request"
	case DirectionResponse:
		return "response"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// DecodeResult reports how far decoding of a single frame got.
type DecodeResult int

const (
	// Complete means a whole frame was decoded.
	Complete DecodeResult = iota
	// Incomplete means fewer bytes than the header or the declared payload were
	// available. The bytes are discarded and the caller polls again.
	Incomplete
	// Unrecognized means the header did not start with a known marker.
	Unrecognized
)

// String returns a readable result name
func (r DecodeResult) String() string {
	switch r {
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	case Unrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Frame is a single MSP v2 message.
type Frame struct {
	Payload   []byte
	Function  uint16
	Direction Direction
	// Checksum holds the byte read off the wire for decoded frames. It is
	// recomputed by Encode and never validated on decode.
	Checksum byte
}

// NewRequest builds a host-to-backpack frame.
func NewRequest(function uint16, payload ...byte) Frame {
	return Frame{Function: function, Payload: payload, Direction: DirectionRequest}
}

// CombineBytes recovers a little-endian 16-bit field from its two wire bytes.
func CombineBytes(lo, hi byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// SplitBytes is the inverse of CombineBytes.
func SplitBytes(v uint16) (lo, hi byte) {
	return byte(v), byte(v >> 8)
}

// Checksum computes the CRC-8/DVB-S2 used by MSP v2 over flag, function,
// length and payload.
func Checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// Encode serializes the frame to its wire form.
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}

	marker := RequestMarker
	if f.Direction == DirectionResponse {
		marker = ResponseMarker
	}

	buf := make([]byte, 0, HeaderLength+len(f.Payload)+ChecksumLength)
	buf = append(buf, marker[:]...)
	buf = append(buf, 0) // flag, unused
	fnLo, fnHi := SplitBytes(f.Function)
	lenLo, lenHi := SplitBytes(uint16(len(f.Payload)))
	buf = append(buf, fnLo, fnHi, lenLo, lenHi)
	buf = append(buf, f.Payload...)
	buf = append(buf, Checksum(buf[len(marker):]))
	return buf, nil
}

// ParseHeader validates the marker of an 8-byte header and extracts the
// function code and declared payload length.
func ParseHeader(header []byte) (dir Direction, function, length uint16, result DecodeResult) {
	if len(header) < HeaderLength {
		return 0, 0, 0, Incomplete
	}
	if header[0] != MarkerStart || header[1] != MarkerVersion {
		return 0, 0, 0, Unrecognized
	}
	switch header[2] {
	case MarkerRequest:
		dir = DirectionRequest
	case MarkerResponse:
		dir = DirectionResponse
	default:
		return 0, 0, 0, Unrecognized
	}
	return dir, CombineBytes(header[4], header[5]), CombineBytes(header[6], header[7]), Complete
}

// Decode parses one frame from the start of data.
func Decode(data []byte) (Frame, DecodeResult) {
	dir, function, length, result := ParseHeader(data)
	if result != Complete {
		return Frame{}, result
	}

	end := HeaderLength + int(length)
	if len(data) < end+ChecksumLength {
		return Frame{}, Incomplete
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderLength:end])
	return Frame{
		Direction: dir,
		Function:  function,
		Payload:   payload,
		Checksum:  data[end],
	}, Complete
}

// ReadFrame reads one frame from r. Short reads yield Incomplete and the
// partial bytes are dropped, since the link has no resynchronization
// primitive. Any read error is returned alongside the result.
func ReadFrame(r io.Reader) (Frame, DecodeResult, error) {
	header, err := ReadUpTo(r, HeaderLength)
	if len(header) < HeaderLength {
		return Frame{}, Incomplete, err
	}

	dir, function, length, result := ParseHeader(header)
	if result != Complete {
		return Frame{}, result, err
	}

	body, err := ReadUpTo(r, int(length)+ChecksumLength)
	if len(body) < int(length)+ChecksumLength {
		return Frame{}, Incomplete, err
	}

	return Frame{
		Direction: dir,
		Function:  function,
		Payload:   body[:length],
		Checksum:  body[length],
	}, Complete, nil
}

// ReadUpTo reads until n bytes have arrived, a read returns no data (the
// port's read timeout expired) or a read fails.
func ReadUpTo(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		read, err := r.Read(buf[got:])
		got += read
		if err != nil {
			return buf[:got], fmt.Errorf("read failed after %d of %d bytes: %w", got, n, err)
		}
		if read == 0 {
			break
		}
	}
	return buf[:got], nil
}
