package queueclient

import (
	"math"
	"strconv"
	"strings"
)

const (
	// MinRetryAfterSeconds floors the wait so an upstream cannot force a
	// zero or negative delay.
	MinRetryAfterSeconds = 1
	// MaxRetryAfterSeconds caps the wait so a buggy or malicious upstream
	// cannot stall a caller indefinitely.
	MaxRetryAfterSeconds = 120
	// DefaultRetryAfterSeconds applies when the server supplies no hint.
	DefaultRetryAfterSeconds = 3
)

// RetryAfterSeconds parses a Retry-After header value into a wait in whole
// seconds. Missing or unparseable input yields fallback; everything else is
// floored and clamped into [MinRetryAfterSeconds, MaxRetryAfterSeconds].
func RetryAfterSeconds(raw string, fallback int) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback
	}
	return RetryAfterFromNumber(f, fallback)
}

// RetryAfterFromNumber normalizes a numeric wait hint, such as the body's
// poll_after_s field. Non-finite input yields fallback.
func RetryAfterFromNumber(f float64, fallback int) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return clampRetryAfter(int(math.Floor(f)))
}

func clampRetryAfter(n int) int {
	if n < MinRetryAfterSeconds {
		return MinRetryAfterSeconds
	}
	if n > MaxRetryAfterSeconds {
		return MaxRetryAfterSeconds
	}
	return n
}
