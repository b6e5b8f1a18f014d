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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-elrsbackpack/internal/retry"
	"github.com/ZaparooProject/go-elrsbackpack/msp"
	"github.com/rs/zerolog"
)

// Busy ports are reopened a few times before discovery moves on.
const (
	openRetries    = 2
	openRetryDelay = 250 * time.Millisecond
)

// discover probes every candidate port in order and returns the first one
// on which a backpack answers the version query.
func (l *Link) discover(ctx context.Context, logger zerolog.Logger) (Port, string, error) {
	candidates, err := l.lister(ctx, l.config)
	if err != nil {
		return nil, "", err
	}
	if len(candidates) == 0 {
		return nil, "", ErrNoCandidates
	}

	request, err := msp.NewRequest(msp.FuncGetBackpackVersion).Encode()
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode version request: %w", err)
	}

	logger.Info().Int("candidates", len(candidates)).Msg("attempting to find backpack")

	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("discovery cancelled: %w", err)
		}

		port, version, err := l.probe(ctx, name, request, logger)
		if err != nil {
			logger.Warn().Err(err).Str("port", name).Msg("no backpack on port, trying next")
			continue
		}

		l.version.Store(version)
		logger.Info().Str("port", name).Str("version", version).Msg("connected to backpack")
		return port, name, nil
	}

	return nil, "", ErrNoBackpack
}

// probe opens one candidate and performs the handshake. The port is closed
// on every failure path.
func (l *Link) probe(ctx context.Context, name string, request []byte, logger zerolog.Logger) (_ Port, _ string, err error) {
	port, err := retry.Do(ctx, retry.Config{
		Retryable:   IsTransient,
		Description: "open " + name,
		MaxRetries:  openRetries,
		Delay:       openRetryDelay,
		OnRetry: func(attempt int, err error) {
			logger.Debug().Err(err).Str("port", name).Int("attempt", attempt).Msg("port busy, retrying")
		},
	}, func() (Port, error) {
		return l.opener(name, l.config)
	})
	if err != nil {
		if IsTransient(err) {
			return nil, "", err
		}
		return nil, "", NewLinkError("open", name, err, ErrorTypePermanent)
	}

	defer func() {
		if err != nil {
			_ = port.Close()
		}
	}()

	if err = retry.Sleep(ctx, l.config.BootDelay); err != nil {
		return nil, "", fmt.Errorf("waiting for device boot: %w", err)
	}

	if _, err = port.Write(request); err != nil {
		return nil, "", NewLinkError("write", name, err, ErrorTypePermanent)
	}

	header, _ := msp.ReadUpTo(port, msp.HeaderLength)
	if len(header) < msp.HeaderLength {
		return nil, "", NewLinkError("handshake", name,
			fmt.Errorf("%w: %d bytes", ErrBadResponse, len(header)), ErrorTypePermanent)
	}

	dir, function, length, result := msp.ParseHeader(header)
	if result != msp.Complete || dir != msp.DirectionResponse {
		return nil, "", NewLinkError("handshake", name,
			fmt.Errorf("%w: % X", ErrUnrecognized, header[:3]), ErrorTypePermanent)
	}

	// The trailing checksum byte is consumed but not verified on this path.
	body, _ := msp.ReadUpTo(port, int(length)+msp.ChecksumLength)

	if function != msp.FuncGetBackpackVersion && function != msp.FuncBackpackSetMode {
		return nil, "", NewLinkError("handshake", name,
			fmt.Errorf("%w: function %#04x", ErrUnexpectedDevice, function), ErrorTypePermanent)
	}

	if len(body) > int(length) {
		body = body[:length]
	}
	return port, string(body), nil
}
