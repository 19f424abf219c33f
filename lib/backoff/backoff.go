// Package backoff computes reconnection delays with exponential backoff.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy configures the delay schedule.
type Policy struct {
	// InitialDelay is the first retry delay. Zero retries immediately,
	// every time.
	InitialDelay time.Duration
	// MaxDelay caps the delay (0 = uncapped).
	MaxDelay time.Duration
	// Multiplier is the growth factor between attempts.
	Multiplier float64
	// Jitter is the random jitter fraction (0.0-1.0). It spreads every
	// delay, the first included, evenly above and below the base value.
	Jitter float64
}

// DefaultPolicy returns the classic reconnecting-client schedule: one second,
// growing by e, capped at an hour, with about 12% jitter.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: time.Second,
		MaxDelay:     time.Hour,
		Multiplier:   math.E,
		Jitter:       0.11962656472,
	}
}

// Immediate returns a policy that never waits between attempts.
func Immediate() Policy {
	return Policy{}
}

// Delay returns the delay before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay > math.MaxInt64/2 {
		delay = math.MaxInt64 / 2
	}

	if p.Jitter > 0 {
		jitter := delay * p.Jitter
		delay += (rand.Float64()*2 - 1) * jitter
	}

	if delay < 0 {
		delay = 0
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}

// Schedule tracks consecutive failures for one connection slot.
// It is not safe for concurrent use.
type Schedule struct {
	policy   Policy
	attempts int
}

// NewSchedule returns a Schedule at attempt zero.
func NewSchedule(p Policy) *Schedule {
	return &Schedule{policy: p}
}

// Next returns the delay for the next retry and advances the schedule.
func (s *Schedule) Next() time.Duration {
	d := s.policy.Delay(s.attempts)
	if s.attempts < math.MaxInt32 {
		s.attempts++
	}
	return d
}

// Reset returns the schedule to attempt zero after a successful connect.
func (s *Schedule) Reset() {
	s.attempts = 0
}

// Attempts returns the number of retries handed out since the last Reset.
func (s *Schedule) Attempts() int {
	return s.attempts
}
