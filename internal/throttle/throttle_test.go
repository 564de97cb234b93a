package throttle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cwsl/sdranalyzer/internal/throttle"
)

func TestZeroRateNeverPaces(t *testing.T) {
	th := throttle.New(0)
	assert.Equal(t, 1000, th.Allowed(1000))
}

func TestAllowedNeverExceedsWanted(t *testing.T) {
	th := throttle.New(1_000_000)
	time.Sleep(5 * time.Millisecond)
	assert.LessOrEqual(t, th.Allowed(10), 10)
}

func TestAllowedAccumulatesOverTime(t *testing.T) {
	th := throttle.New(100_000) // 100k samples/sec
	time.Sleep(20 * time.Millisecond)
	got := th.Allowed(100_000)
	assert.Greater(t, got, 0)
	assert.LessOrEqual(t, got, 100_000)
}

func TestResetClearsAccumulatorNotRate(t *testing.T) {
	th := throttle.New(100_000)
	time.Sleep(20 * time.Millisecond)
	th.Reset()
	assert.Equal(t, float64(100_000), th.Rate())
	assert.Equal(t, 0, th.Allowed(0))
}

// TestOverrideRoundTrip exercises the spec's testable property that
// Override atomically replaces both rate and accumulator: pacing at the
// new rate must not be influenced by accumulation under the old one.
func TestOverrideRoundTrip(t *testing.T) {
	th := throttle.New(1)
	time.Sleep(50 * time.Millisecond) // accrue under the old slow rate
	th.Override(1_000_000)
	assert.Equal(t, float64(1_000_000), th.Rate())

	time.Sleep(10 * time.Millisecond)
	got := th.Allowed(1_000_000)
	assert.Greater(t, got, 0)
}
