package queue

import (
	"math"
	"time"
)

// RetryPolicy is the backoff schedule applied to every task.
type RetryPolicy struct {
	// MaxAttempts counts the first run.
	MaxAttempts    int
	InitialBackoff time.Duration
	Base           float64
}

// DefaultRetryPolicy returns 5 attempts starting at 1s and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Second, Base: 2}
}

// Delay returns the wait after the n-th failed attempt (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	base := p.Base
	if base < 1 {
		base = 1
	}
	return time.Duration(float64(p.InitialBackoff) * math.Pow(base, float64(n-1)))
}
