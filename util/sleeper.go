// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package util

import (
	"context"
	"sync"
	"time"
)

// Sleeper pauses the caller for a duration, returning early with the context's
// error if it is cancelled first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealSleeper sleeps using timers.
var RealSleeper Sleeper = realSleeper{}

// RecordingSleeper never blocks; it records every requested duration.
type RecordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

// Slept returns the durations requested so far.
func (r *RecordingSleeper) Slept() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.slept...)
}

// Total returns the sum of all requested durations.
func (r *RecordingSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Slept() {
		total += d
	}
	return total
}
