package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, Key("report", "o/r", "10"), Key("report", "o/r", "10"))
	assert.NotEqual(t, Key("report", "o/r", "10"), Key("report", "o/r", "20"))
	assert.NotEqual(t, Key("report", "o/r"), Key("tree", "o/r"))

	// Length prefixes keep adjacent parts from aliasing.
	assert.NotEqual(t, Key("report", "ab", "c"), Key("report", "a", "bc"))
}

func TestCacheRoundTrip(t *testing.T) {
	c := New()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "value", time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestCacheExpiry(t *testing.T) {
	c := New()
	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Set("k", 42, time.Hour)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(time.Hour + time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheOverwrite(t *testing.T) {
	c := New()
	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}
