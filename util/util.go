// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package util contains general purpose utilities
package util

import (
	"context"
	"time"

	"golang.org/x/exp/constraints"
)

// Min returns the minimum of a and b
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of a and b
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Clamp restricts the value to the range [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return Max(lo, Min(hi, v))
}

// Backoff returns the wait before the retry'th retry (1-based) of an
// exponential schedule starting at initial and doubling each time.
func Backoff(initial time.Duration, retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return initial << (retry - 1)
}

// RetryAttempts calls `fun` at most `attempts` times, sleeping Backoff(initial, n)
// before the n'th retry. There is no sleep after the final failure. It returns the
// first successful result, or the last error together with the number of attempts made.
func RetryAttempts[T any](
	ctx context.Context,
	attempts int,
	initial time.Duration,
	sleeper Sleeper,
	fun func(attempt int) (T, error)) (T, int, error) {

	var res T
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if serr := sleeper.Sleep(ctx, Backoff(initial, attempt-1)); serr != nil {
				return res, attempt - 1, serr
			}
		}
		res, err = fun(attempt)
		if err == nil {
			return res, attempt, nil
		}
	}
	return res, attempts, err
}
