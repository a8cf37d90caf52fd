package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	a := Key(1, "find", "topic=housing")
	if a != Key(1, "find", "topic=housing") {
		t.Error("Key is not deterministic")
	}
	assert.NotEqual(t, a, Key(2, "find", "topic=housing"), "version must be part of the key")
	assert.NotEqual(t, a, Key(1, "evolution", "topic=housing"))
	assert.NotEqual(t, Key(1, "find", "a", "b"), Key(1, "find", "ab"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", []string{"v"}, 0)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []string{"v"}, got)
	assert.Equal(t, 1, c.Len())

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	c.Set("k", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestNew_DisabledStoresNothing(t *testing.T) {
	c := New(0, time.Minute)
	c.Set("k", 1, time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
