// Package core defines the error taxonomy shared by the retry executor and
// every outbound client: transient, rate-limited, or permanent.
package core

import (
	"fmt"
	"time"
)

// TransientError marks an error as retryable by the retry executor.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultRateLimitDelay is used when the server does not advertise a reset delay.
const DefaultRateLimitDelay = 60 * time.Second

// RateLimitError marks a "too many requests" response. The retry executor
// sleeps Delay() and replays the call without consuming a retry attempt:
// rate limiting is a deterministic protocol response, not a failure.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e == nil || e.Err == nil {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited (retry after %s): %s", e.Delay(), e.Err.Error())
}

func (e *RateLimitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Delay returns the advertised reset delay, falling back to
// DefaultRateLimitDelay when the server did not provide one.
func (e *RateLimitError) Delay() time.Duration {
	if e == nil || e.RetryAfter <= 0 {
		return DefaultRateLimitDelay
	}
	return e.RetryAfter
}
