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
	"crypto/md5" //nolint:gosec // receiver firmware derives its UID with MD5
	"strconv"
	"strings"
)

// IdentifierLength is the size of a receiver address.
const IdentifierLength = 6

// Identifier addresses one physical receiver. It is derived from the bind
// phrase flashed into the receiver's firmware.
type Identifier [IdentifierLength]byte

// HashPhrase derives the receiver address for a bind phrase the same way the
// ExpressLRS build does: the first six bytes of the MD5 of the compiler
// define, with the lowest bit of the first byte cleared.
func HashPhrase(phrase string) Identifier {
	sum := md5.Sum([]byte(`-DMY_BINDING_PHRASE="` + phrase + `"`)) //nolint:gosec // see import

	var id Identifier
	copy(id[:], sum[:IdentifierLength])
	id[0] &^= 0x01
	return id
}

// String formats the identifier as dot-separated decimal bytes
func (id Identifier) String() string {
	parts := make([]string, len(id))
	for i, b := range id {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, ".")
}
