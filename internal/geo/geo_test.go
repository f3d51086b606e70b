package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersSymmetricAndZero(t *testing.T) {
	a, b := 52.52, 13.405 // Berlin
	c, d := 48.8566, 2.3522 // Paris

	ab := DistanceMeters(a, b, c, d)
	ba := DistanceMeters(c, d, a, b)
	assert.InDelta(t, ab, ba, 1e-6)
	assert.InDelta(t, 0, DistanceMeters(a, b, a, b), 1e-9)

	// Berlin-Paris is roughly 878km.
	assert.InDelta(t, 878000, ab, 20000)
}

func TestCooldownSecondsMonotoneAndClamped(t *testing.T) {
	// Monotonicity is only guaranteed across the tabulated thresholds
	// (>=4km); below that the caller's default speed applies and can
	// produce a discontinuity at the 4km boundary, matching the source.
	prev := 0.0
	for _, d := range []float64{4000, 8000, 25000, 100000, 500000, 1000000, 1335000, 2000000} {
		cd := CooldownSeconds(d)
		assert.GreaterOrEqual(t, cd, prev-1e-6, "cooldown should be non-decreasing with distance at %v", d)
		assert.LessOrEqual(t, cd, 7200.0)
		prev = cd
	}
}

func TestCooldownSecondsBelowSmallestThresholdUsesDefaultSpeed(t *testing.T) {
	got := CooldownSeconds(100)
	want := 100.0 / defaultSpeedMetersPerSecond
	assert.InDelta(t, want, got, 1e-9)
}

func TestCooldownSecondsExactThresholds(t *testing.T) {
	assert.InDelta(t, 4000/22.22222222, CooldownSeconds(4000), 1e-6)
	// 1335000/180.43 is about 7399 s, above the cap, so it clamps to 7200.
	assert.InDelta(t, 7200.0, CooldownSeconds(1335000), 1e-6)
	assert.Equal(t, 7200.0, CooldownSeconds(1335000*100))
}
