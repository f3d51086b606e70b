package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsWithinBurst(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, BurstSize: 3, CleanupInterval: time.Minute})
	defer l.Stop()

	assert.True(t, l.Allow("dev1"))
	assert.True(t, l.Allow("dev1"))
	assert.True(t, l.Allow("dev1"))
	assert.False(t, l.Allow("dev1"), "fourth immediate request should exhaust the burst")
}

func TestLimiterTracksDevicesIndependently(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Minute})
	defer l.Stop()

	assert.True(t, l.Allow("dev1"))
	assert.True(t, l.Allow("dev2"))
	assert.False(t, l.Allow("dev1"))
	assert.Equal(t, 2, l.ActiveDevices())
}

func TestLimiterRefillsOverTime(t *testing.T) {
	l := New(Config{RequestsPerSecond: 100, BurstSize: 1, CleanupInterval: time.Minute})
	defer l.Stop()

	assert.True(t, l.Allow("dev1"))
	assert.False(t, l.Allow("dev1"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow("dev1"))
}
