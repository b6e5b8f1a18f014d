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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errBusy   = errors.New("busy")
	errBroken = errors.New("broken")
)

func isBusy(err error) bool {
	return errors.Is(err, errBusy)
}

// failing returns an operation failing with errs in order, then succeeding.
func failing(calls *int, errs ...error) Operation[string] {
	return func() (string, error) {
		*calls++
		if *calls <= len(errs) {
			return "", errs[*calls-1]
		}
		return "ok", nil
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr   error
		name      string
		errs      []error
		retries   int
		wantCalls int
	}{
		{name: "first attempt", retries: 2, wantCalls: 1},
		{name: "recovers", errs: []error{errBusy, errBusy}, retries: 2, wantCalls: 3},
		{name: "exhausted", errs: []error{errBusy, errBusy, errBusy}, retries: 2, wantCalls: 3, wantErr: ErrExhausted},
		{name: "permanent", errs: []error{errBroken}, retries: 2, wantCalls: 1, wantErr: errBroken},
		{name: "no retries", errs: []error{errBusy}, retries: 0, wantCalls: 1, wantErr: errBusy},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			var retried []int
			got, err := Do(context.Background(), Config{
				Retryable:  isBusy,
				OnRetry:    func(attempt int, _ error) { retried = append(retried, attempt) },
				MaxRetries: tt.retries,
			}, failing(&calls, tt.errs...))

			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, retried, tt.wantCalls-1)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", got)
		})
	}
}

func TestDo_NilRetryable(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: 3}, failing(&calls, errBusy))
	require.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedKeepsCause(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), Config{
		Retryable:   isBusy,
		Description: "open /dev/ttyUSB0",
		MaxRetries:  1,
	}, failing(&calls, errBusy, errBusy))

	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, errBusy)
	assert.Contains(t, err.Error(), "open /dev/ttyUSB0")
	assert.Contains(t, err.Error(), "2 attempts")
}

func TestDo_CancelledWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, Config{
		Retryable:  isBusy,
		MaxRetries: 5,
		Delay:      time.Hour,
	}, failing(&calls, errBusy, errBusy))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleep(t *testing.T) {
	t.Parallel()

	require.NoError(t, Sleep(context.Background(), 0))
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, 0), context.Canceled)

	start := time.Now()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
