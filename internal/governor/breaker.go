package governor

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the recovery window has not yet elapsed.
var ErrCircuitOpen = errors.New("governor: circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [CircuitBreaker].
type BreakerConfig struct {
	// Name labels log messages.
	Name string

	// FailureThreshold is the number of consecutive non-rate-limit failures
	// before the breaker opens. Default: 5.
	FailureThreshold int

	// RecoverySeconds is how long the breaker stays open before allowing a
	// single half-open probe. Default: 60s.
	RecoverySeconds time.Duration
}

// CircuitBreaker is a three-state breaker (closed → open → half-open) that
// allows exactly one probe call while half-open. Rate-limit rejections
// (identified via [IsRateLimitError]) never count as failures and never
// consume the probe slot — the Service's own throttling is not a sign the
// outbound path is broken.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recovery         time.Duration
	clock            Clock

	mu              sync.Mutex
	state           State
	consecutiveFail int
	lastFailure     time.Time
	probeInFlight   bool
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg BreakerConfig, clock Clock) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoverySeconds <= 0 {
		cfg.RecoverySeconds = 60 * time.Second
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		recovery:         cfg.RecoverySeconds,
		clock:            clock,
		state:            StateClosed,
	}
}

// Execute runs fn if the breaker allows it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if cb.clock.Now().Sub(cb.lastFailure) >= cb.recovery {
			cb.state = StateHalfOpen
			cb.probeInFlight = false
			slog.Info("circuit breaker transitioning to half-open", "name", cb.name)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}

	case StateHalfOpen:
		if cb.probeInFlight {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	inHalfOpen := cb.state == StateHalfOpen
	if inHalfOpen {
		cb.probeInFlight = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if IsRateLimitError(err) {
		// Not a signal about outbound health; release the probe slot
		// untouched so the next attempt can still probe.
		if inHalfOpen {
			cb.probeInFlight = false
		}
		return err
	}

	if err != nil {
		cb.recordFailure(inHalfOpen)
	} else {
		cb.recordSuccess(inHalfOpen)
	}
	return err
}

// recordFailure must be called with cb.mu held.
func (cb *CircuitBreaker) recordFailure(inHalfOpen bool) {
	cb.lastFailure = cb.clock.Now()

	if inHalfOpen {
		cb.state = StateOpen
		cb.probeInFlight = false
		cb.consecutiveFail = cb.failureThreshold
		slog.Warn("circuit breaker probe failed, re-opening", "name", cb.name)
		return
	}

	cb.consecutiveFail++
	if cb.consecutiveFail >= cb.failureThreshold {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened", "name", cb.name, "consecutive_failures", cb.consecutiveFail)
	}
}

// recordSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess(inHalfOpen bool) {
	if inHalfOpen {
		cb.state = StateClosed
		cb.consecutiveFail = 0
		cb.probeInFlight = false
		slog.Info("circuit breaker closed after successful probe", "name", cb.name)
		return
	}
	cb.consecutiveFail = 0
}

// State returns the current [State]. A due half-open transition is reported
// even though the actual state flips lazily on the next [Execute] call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.clock.Now().Sub(cb.lastFailure) >= cb.recovery {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed].
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.probeInFlight = false
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
