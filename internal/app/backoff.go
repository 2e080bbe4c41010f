package app

import (
	"math/rand"
	"time"
)

// Default retry policy values, overridable via configuration.
const (
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 30 * time.Second
	DefaultMaxAttempts = 5
)

// jitterFraction is the relative width of the jitter band around each delay.
const jitterFraction = 0.2

// Backoff computes retry delays as a pure function of the attempt count:
//
//	delay(n) = min(base << n, cap) ± 20% jitter
//
// Rand supplies the jitter source and is injectable for deterministic tests;
// when nil, math/rand is used.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
	Rand func() float64
}

// NewBackoff returns a Backoff with the given base and cap, falling back
// to defaults for non-positive values.
func NewBackoff(base, cap time.Duration) Backoff {
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	if cap <= 0 {
		cap = DefaultMaxBackoff
	}
	return Backoff{Base: base, Cap: cap}
}

// Delay returns the wait before retry number attempt+1. The un-jittered
// delay is non-decreasing in attempt and never exceeds Cap.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Cap || d <= 0 { // <= 0 catches overflow
			d = b.Cap
			break
		}
	}
	if d > b.Cap {
		d = b.Cap
	}

	rnd := b.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	jitter := time.Duration(float64(d) * jitterFraction * (rnd()*2 - 1))

	d += jitter
	if d < 0 {
		d = 0
	}
	return d
}
