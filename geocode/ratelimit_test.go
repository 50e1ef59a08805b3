// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFirstAcquireIsImmediate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(time.Second, clock)

	done := make(chan error, 1)
	go func() {
		done <- limiter.Acquire(context.Background())
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first Acquire should not wait")
	}
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(time.Second, clock)

	require.NoError(t, limiter.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- limiter.Acquire(context.Background())
	}()

	// The second caller must be parked on the timer.
	clock.BlockUntil(1)

	select {
	case <-done:
		t.Fatal("second Acquire returned before the interval elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Second)
	require.NoError(t, <-done)
}

func TestRateLimiterAcquireHonorsContext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiterWithClock(time.Second, clock)

	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- limiter.Acquire(ctx)
	}()

	clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

// Concurrent callers must collapse into a serialized stream: n acquires
// take at least (n-1) intervals of wall time.
func TestRateLimiterSerializesConcurrentCallers(t *testing.T) {
	const interval = 30 * time.Millisecond

	limiter := NewRateLimiter(interval)

	start := time.Now()

	var wg sync.WaitGroup

	for range 3 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := limiter.Acquire(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}

	wg.Wait()

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 2*interval)
}

func TestRateLimiterDefaultsInterval(t *testing.T) {
	limiter := NewRateLimiter(0)

	assert.Equal(t, DefaultRateInterval, limiter.Interval())
}
