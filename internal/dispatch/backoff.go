package dispatch

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes the delay before the next delivery attempt:
// Base*2^attempt capped at Max, plus up to one Base of random jitter so a
// burst of failures does not retry in lockstep. The same shape is used by
// the polling worker for its own transport backoff.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// maxShift bounds the exponent so the shift can never overflow.
const maxShift = 16

// Next returns the delay after the given attempt count.
func (p BackoffPolicy) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}

	delay := p.Base << uint(attempt)
	if delay > p.Max || delay <= 0 {
		delay = p.Max
	}

	return delay + time.Duration(rand.Int63n(int64(p.Base)+1))
}
