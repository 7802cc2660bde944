package governor

import (
	"errors"
	"time"
)

// RateLimitError signals that the Service rejected a call due to its own
// throttling (an HTTP-429-equivalent), as opposed to a genuine failure.
// Transports that wrap outbound calls in [Governor.Execute] should return a
// *RateLimitError instead of a plain error when the Service responds this
// way, so the governor retries it instead of tripping the breaker.
type RateLimitError struct {
	// RetryAfter is the Service-indicated wait before retrying. Zero means
	// the governor falls back to [DefaultRetryAfter].
	RetryAfter time.Duration
	// Cause is the underlying transport error, if any.
	Cause error
}

// DefaultRetryAfter is used when the Service sends a rate-limit rejection
// without a usable retry interval.
const DefaultRetryAfter = time.Second

func (e *RateLimitError) Error() string {
	if e.Cause != nil {
		return "governor: rate limited: " + e.Cause.Error()
	}
	return "governor: rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

// IsRateLimitError reports whether err is (or wraps) a *RateLimitError.
func IsRateLimitError(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// AsRateLimitError extracts the *RateLimitError from err, if any.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
