package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetSetHitMiss(t *testing.T) {
	c := New(Config{MaxSize: 4, TTL: time.Minute})

	_, ok := c.Get("stats")
	assert.False(t, ok)

	c.Set("stats", "snapshot-1")
	v, ok := c.Get("stats")
	assert.True(t, ok)
	assert.Equal(t, "snapshot-1", v)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheExpiration(t *testing.T) {
	c := New(Config{MaxSize: 4, TTL: time.Millisecond})
	c.Set("stats", "snapshot-1")
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("stats")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.GetStats().Expirations)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(Config{MaxSize: 2, TTL: time.Minute})
	c.Set("a", 1)
	c.Set("b", 2)
	// Touch "a" so "b" becomes the least recently used.
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.GetStats().Evictions)
}
