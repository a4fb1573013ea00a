package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestGetOrSetReusesLiveValue(t *testing.T) {
	c := NewTTLCache[string, *int]()
	calls := 0
	create := func() *int {
		calls++
		n := calls
		return &n
	}

	first := c.GetOrSet("sid", time.Hour, create)
	second := c.GetOrSet("sid", time.Hour, create)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestDeleteFunc(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("s1/inv-1", 1, 0)
	c.Set("s1/inv-2", 2, 0)
	c.Set("s2/inv-1", 3, 0)

	c.DeleteFunc(func(k string) bool { return k[:2] == "s1" })

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("s2/inv-1")
	assert.True(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("a", 1, time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestWritesSweepExpiredEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return now }

	for _, k := range []string{"v1", "v2", "v3"} {
		c.Set(k, 1, time.Minute)
	}
	assert.Equal(t, 3, c.Len())

	// none of the expired keys is read again; a later write evicts them
	now = now.Add(2 * time.Minute)
	c.GetOrSet("v4", time.Minute, func() int { return 4 })

	assert.Equal(t, 1, c.Len())
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return now }
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	now = now.Add(time.Minute)
	c.Sweep()

	assert.Equal(t, 1, c.Len())
}

func TestSetUnless(t *testing.T) {
	c := NewTTLCache[string, int]()
	busy := func(v int) bool { return v < 0 }

	v, stored := c.SetUnless("k", -1, time.Hour, busy)
	assert.True(t, stored)
	assert.Equal(t, -1, v)

	v, stored = c.SetUnless("k", 2, time.Hour, busy)
	assert.False(t, stored)
	assert.Equal(t, -1, v)

	c.Set("k", 3, time.Hour)
	_, stored = c.SetUnless("k", 4, time.Hour, busy)
	assert.True(t, stored)
	got, _ := c.Get("k")
	assert.Equal(t, 4, got)
}
