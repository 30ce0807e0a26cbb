package relay

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Schedule maps an attempt number to the delay before the next try.
type Schedule struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the backoff after the given failed attempt (1-based).
// Exponential with jitter, capped at Max, so a burst of failing deliveries
// does not retry in lockstep.
func (s Schedule) Delay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.Base
	b.MaxInterval = s.Max
	b.RandomizationFactor = 0.2

	if attempt < 1 {
		attempt = 1
	}
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
