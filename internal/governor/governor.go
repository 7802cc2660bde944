// Package governor implements the Service outbound-call rate governor: a
// cooperative rate limiter plus a circuit breaker that never lets the
// Service's own throttling count as a transport failure.
package governor

import (
	"context"
	"time"
)

// Config tunes a [Governor].
type Config struct {
	// Name labels breaker log messages.
	Name string

	// RatePerSecond caps outbound calls. Default: [DefaultRatePerSecond].
	RatePerSecond float64

	// FailureThreshold and RecoverySeconds configure the embedded breaker;
	// see [BreakerConfig].
	FailureThreshold int
	RecoverySeconds  time.Duration
}

// Governor enforces the rate cap and breaker policy from spec around any
// outbound call to the Service.
type Governor struct {
	limiter *rateLimiter
	breaker *CircuitBreaker
	clock   Clock
}

// New builds a [Governor]. clock may be nil, in which case [NewRealClock] is used.
func New(cfg Config, clock Clock) *Governor {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Governor{
		limiter: newRateLimiter(cfg.RatePerSecond, clock),
		breaker: NewCircuitBreaker(BreakerConfig{
			Name:             cfg.Name,
			FailureThreshold: cfg.FailureThreshold,
			RecoverySeconds:  cfg.RecoverySeconds,
		}, clock),
		clock: clock,
	}
}

// AwaitSlot blocks cooperatively until the next outbound call is permitted
// under the rate cap.
func (g *Governor) AwaitSlot(ctx context.Context) error {
	return g.limiter.awaitSlot(ctx)
}

// State returns the breaker's current [State].
func (g *Governor) State() State {
	return g.breaker.State()
}

// Execute runs fn through the full governor pipeline: await a rate-limit
// slot, invoke fn via the circuit breaker, and — if fn reports a
// [RateLimitError] — sleep for its RetryAfter (or [DefaultRetryAfter]) and
// retry fn exactly once. The breaker only ever sees the pipeline's final
// outcome, and rate-limit outcomes never count as breaker failures.
func (g *Governor) Execute(ctx context.Context, fn func(context.Context) error) error {
	return g.breaker.Execute(func() error {
		return g.withGovernor(ctx, fn)
	})
}

func (g *Governor) withGovernor(ctx context.Context, fn func(context.Context) error) error {
	if err := g.AwaitSlot(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	rl, limited := AsRateLimitError(err)
	if !limited {
		return err
	}

	wait := rl.RetryAfter
	if wait <= 0 {
		wait = DefaultRetryAfter
	}
	if err := g.clock.Sleep(ctx, wait); err != nil {
		return err
	}
	return fn(ctx)
}
