// Package retry provides exponential backoff helpers for transient failures.
package retry

import (
	"math"
	"strings"
	"time"
)

// MaxDelay caps the exponential backoff between attempts.
const MaxDelay = 5 * time.Minute

// Backoff returns the delay after the given failed attempt: base after the
// first, doubling each attempt after that, capped at MaxDelay.
func Backoff(attempt int, base time.Duration) time.Duration {
	if attempt <= 1 {
		return base
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > MaxDelay || d <= 0 {
		return MaxDelay
	}
	return d
}

// retryablePatterns matches transport-level failures worth retrying.
var retryablePatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"network is unreachable",
	"i/o timeout",
}

// IsTransientMessage reports whether an error message looks like a
// transient transport failure.
func IsTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pattern := range retryablePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
