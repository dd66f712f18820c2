package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New(time.Second, 10)
	found, _ := c.Get("missing")
	assert.False(t, found)
}

func TestSetThenGetHits(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("k", 42)
	found, v := c.Get("k")
	assert.True(t, found)
	assert.Equal(t, 42, v)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	c.Set("k", "v")
	time.Sleep(30 * time.Millisecond)
	found, _ := c.Get("k")
	assert.False(t, found)
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 2)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	c.Set("c", 3)

	foundA, _ := c.Get("a")
	foundC, _ := c.Get("c")
	assert.False(t, foundA)
	assert.True(t, foundC)
}

func TestClearReturnsEvictedCount(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 2, c.Clear())
}

func TestNormalizeKeyStableAcrossMapOrder(t *testing.T) {
	k1 := NormalizeKey("topic", map[string]any{"a": 1, "b": 2})
	k2 := NormalizeKey("topic", map[string]any{"b": 2, "a": 1})
	assert.Equal(t, k1, k2)
}
