// Package throttle implements the analyzer's virtual pacer: a clock that
// answers "how many samples may I read now?" from elapsed wall time at a
// configured nominal rate, used only for non-realtime (file) sources.
// Live radio sources are naturally rate-limited by hardware and never
// consult a Throttle.
//
// Grounded on the teacher's token-bucket RateLimiter (ratelimit.go),
// generalized from a fixed "1 token per Allow call" integer counter to a
// fractional sample accumulator driven by elapsed real time.
package throttle

import (
	"sync"
	"time"
)

// Throttle is a mutex-guarded sample-rate accumulator.
type Throttle struct {
	mu          sync.Mutex
	rate        float64 // nominal samples per second
	accumulated float64 // fractional samples owed since lastTick
	lastTick    time.Time
}

// New creates a Throttle pacing at rate samples per second. A rate of 0
// disables pacing: Allowed always returns the requested count.
func New(rate float64) *Throttle {
	return &Throttle{rate: rate, lastTick: time.Now()}
}

// Allowed returns how many of the next `want` samples may be read right
// now, based on elapsed wall-clock time since the last call (or since
// Reset/Override). It never returns more than want.
func (t *Throttle) Allowed(want int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rate <= 0 {
		return want
	}

	now := time.Now()
	elapsed := now.Sub(t.lastTick).Seconds()
	t.lastTick = now
	t.accumulated += elapsed * t.rate

	allowed := int(t.accumulated)
	if allowed > want {
		allowed = want
	}
	if allowed < 0 {
		allowed = 0
	}
	t.accumulated -= float64(allowed)
	return allowed
}

// Reset clears the accumulator without changing the configured rate. The
// analyzer handles a THROTTLE message with samp_rate==0 through Override
// with the source's nominal rate, not through Reset.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accumulated = 0
	t.lastTick = time.Now()
}

// Override atomically replaces both the rate and the accumulator, the Go
// analog of a THROTTLE message carrying a non-zero samp_rate.
func (t *Throttle) Override(rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rate = rate
	t.accumulated = 0
	t.lastTick = time.Now()
}

// Rate reports the currently configured nominal sample rate.
func (t *Throttle) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}
