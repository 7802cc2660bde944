package governor

import (
	"context"
	"time"
)

// Clock abstracts wall-clock time so rate-limit and breaker-recovery tests
// run without real sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock is the production [Clock], backed by the actual wall clock.
type realClock struct{}

// NewRealClock returns the production [Clock].
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
