package governor

import (
	"context"
	"sync"
	"time"
)

// DefaultRatePerSecond is the governor's design default outbound cap.
const DefaultRatePerSecond = 50.0

// rateLimiter enforces that successive calls are at least 1/ratePerSecond
// apart by reserving the next eligible slot under lock, then sleeping
// outside the lock.
type rateLimiter struct {
	clock       Clock
	minInterval time.Duration

	mu       sync.Mutex
	nextSlot time.Time
}

func newRateLimiter(ratePerSecond float64, clock Clock) *rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = DefaultRatePerSecond
	}
	return &rateLimiter{
		clock:       clock,
		minInterval: time.Duration(float64(time.Second) / ratePerSecond),
	}
}

// awaitSlot blocks until at least minInterval has passed since the previous
// call returned, reserving its own slot first so concurrent callers queue up
// rather than all firing at once.
func (r *rateLimiter) awaitSlot(ctx context.Context) error {
	r.mu.Lock()
	now := r.clock.Now()
	slot := now
	if r.nextSlot.After(now) {
		slot = r.nextSlot
	}
	r.nextSlot = slot.Add(r.minInterval)
	r.mu.Unlock()

	wait := slot.Sub(now)
	return r.clock.Sleep(ctx, wait)
}
