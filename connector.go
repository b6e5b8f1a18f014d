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

	"github.com/ZaparooProject/go-elrsbackpack/internal/retry"
	"github.com/ZaparooProject/go-elrsbackpack/msp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// run is the connector goroutine: discovery once, then the steady-state loop.
func (l *Link) run(ctx context.Context) {
	defer close(l.done)

	logger := log.With().Str("session", uuid.NewString()).Logger()

	port, name, err := l.discover(ctx, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("could not find connected backpack, ending connector")
		l.state.disconnect()
		return
	}

	if !l.state.connect(name) {
		// Stop raced with discovery.
		_ = port.Close()
		return
	}

	l.serve(ctx, port, logger.With().Str("port", name).Logger())
}

// serve drains the outbound queue, polls one inbound frame and idles, until
// the state leaves Connected or the context ends.
func (l *Link) serve(ctx context.Context, port Port, logger zerolog.Logger) {
	defer func() {
		if err := port.Close(); err != nil {
			logger.Debug().Err(err).Msg("failed to close backpack port")
		}
		if l.state.disconnect() {
			logger.Info().Msg("backpack link disconnected")
		}
	}()

	errorCount := 0
	for l.state.get() == StateConnected {
		if ctx.Err() != nil {
			return
		}

		delay, _ := l.pacing.get()
		for l.state.get() == StateConnected {
			msg, ok := l.queue.pop()
			if !ok {
				break
			}

			if err := retry.Sleep(ctx, delay); err != nil {
				return
			}

			_, err := port.Write(msg)
			l.pending.Add(-1)
			if err != nil {
				errorCount++
				logger.Debug().Err(err).Int("consecutive", errorCount).Msg("failed to write to backpack")
				if errorCount > l.config.MaxWriteErrors {
					logger.Error().
						Err(errors.Join(ErrLinkClosed, ErrTooManyWriteFails, err)).
						Msg("failed to write to backpack, ending connector")
					return
				}
				continue
			}
			errorCount = 0
		}

		l.pollInbound(port, logger)

		if err := retry.Sleep(ctx, l.config.IdleInterval); err != nil {
			return
		}
	}
}

// pollInbound reads at most one frame. Anything short or unrecognized is
// dropped; a read error looks the same as no data yet.
func (l *Link) pollInbound(port Port, logger zerolog.Logger) {
	frame, result, err := msp.ReadFrame(port)
	if result != msp.Complete {
		if err != nil {
			logger.Trace().Err(err).Stringer("result", result).Msg("discarded inbound bytes")
		}
		return
	}

	if frame.Direction != msp.DirectionRequest || l.inbound == nil {
		return
	}
	l.inbound.HandleFrame(frame)
}
