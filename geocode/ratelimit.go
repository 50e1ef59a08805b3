// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRateInterval is the minimum spacing between provider requests.
// Nominatim's usage policy caps clients at roughly one request per second;
// the extra 100ms is safety margin.
const DefaultRateInterval = 1100 * time.Millisecond

// RateLimiter enforces a minimum interval between outbound provider
// requests across the whole process. The "next allowed time" is shared
// mutable state guarded by a mutex, so concurrent callers collapse into a
// single serialized request stream.
type RateLimiter struct {
	mu       sync.Mutex
	next     time.Time
	interval time.Duration
	clock    clockwork.Clock
}

// NewRateLimiter creates a limiter with the given minimum interval.
// Non-positive intervals fall back to DefaultRateInterval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(interval, clockwork.NewRealClock())
}

// NewRateLimiterWithClock allows tests to inject a fake clock.
func NewRateLimiterWithClock(interval time.Duration, clock clockwork.Clock) *RateLimiter {
	if interval <= 0 {
		interval = DefaultRateInterval
	}

	return &RateLimiter{interval: interval, clock: clock}
}

// Interval returns the configured minimum interval.
func (l *RateLimiter) Interval() time.Duration {
	return l.interval
}

// Acquire blocks until at least the configured interval has elapsed since
// the previous Acquire returned, or until ctx is cancelled. The mutex is
// held for the whole wait: that is what serializes concurrent callers.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if wait := l.next.Sub(now); wait > 0 {
		timer := l.clock.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case now = <-timer.Chan():
		}
	}

	l.next = now.Add(l.interval)

	return nil
}
