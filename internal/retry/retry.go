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

// Package retry runs operations that may fail transiently.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed
var ErrExhausted = errors.New("retries exhausted")

// Operation is one attempt of a retried call
type Operation[T any] func() (T, error)

// Config configures retry behavior
type Config struct {
	// Retryable decides whether an error is worth another attempt. A nil
	// Retryable retries nothing.
	Retryable func(error) bool
	// OnRetry is called before each new attempt with the error that caused it.
	OnRetry     func(attempt int, err error)
	Description string
	MaxRetries  int
	Delay       time.Duration
}

// Do runs operation until it succeeds, fails with a non-retryable error, or
// MaxRetries extra attempts have been made. Waiting between attempts stops
// early when ctx is done.
func Do[T any](ctx context.Context, config Config, operation Operation[T]) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := operation()
		if err == nil {
			return result, nil
		}
		if config.Retryable == nil || !config.Retryable(err) {
			return zero, err
		}
		if attempt >= config.MaxRetries {
			return zero, exhausted(config, attempt+1, err)
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}
		if err := Sleep(ctx, config.Delay); err != nil {
			return zero, err
		}
	}
}

func exhausted(config Config, attempts int, err error) error {
	if config.Description == "" {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", config.Description, ErrExhausted, attempts, err)
}

// Sleep waits for d or until ctx is done, returning ctx's error in the
// latter case. A non-positive d only checks ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
