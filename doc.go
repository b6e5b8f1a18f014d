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

/*
Package backpack maintains the serial link to an ExpressLRS backpack and uses
it to drive pilot on-screen displays during a race.

The backpack speaks MSP v2 (see the msp package). A Link discovers the
backpack by probing serial ports with a version query, then runs a single
connector goroutine that writes queued frames at a configurable pace and
polls for frames the backpack originates, such as the recording-state
command a pilot's goggles send to start or stop the race.

Features:
  - Automatic discovery over every serial candidate, with VID:PID blocklist
    and ignore paths
  - Bounded, non-blocking outbound queue with backpressure notifications
  - Repeat policy for OSD frames crossing the lossy wireless hop
  - Consecutive write failure budget ending in a terminal Disconnected state
  - Remote race stage/stop from the goggles' record button

Basic Usage:

	link, err := backpack.NewLink(
	    backpack.WithNotifier(ui),
	    backpack.WithInboundHandler(backpack.NewInboundMonitor(raceControl)),
	)
	if err != nil {
	    log.Fatal(err)
	}
	if err := link.Start(ctx); err != nil {
	    log.Fatal(err)
	}
	defer link.Stop()

	// Address one pilot's receiver and show a message
	composer := osd.NewComposer(link, osd.DefaultRows())
	err = composer.Session(ctx, osd.Target{Hardware: osd.HDZero, UID: osd.HashPhrase("my phrase")},
	    func(s *osd.Screen) error {
	        return s.Status("ARM NOW", true, false)
	    })

Connection lifecycle:

	Searching -> Connected(port) -> Disconnected
	Searching -> Disconnected (no backpack answered)

Disconnected is terminal; restart the process (or create a new Link) to
search again.

Thread Safety: Link methods are safe for concurrent use. Enqueue never
blocks: while not connected, or when the queue is full, the message is
dropped.
*/
package backpack
