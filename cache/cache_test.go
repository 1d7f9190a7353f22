package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory()
	defer c.Close()

	c.Set("k", "v", time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestMemory_MissOnUnknownKey(t *testing.T) {
	c := NewMemory()
	defer c.Close()

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestMemory_ExpiredEntryIsAMiss(t *testing.T) {
	c := NewMemory()
	defer c.Close()

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMemory_NonPositiveTTLStoresNothing(t *testing.T) {
	c := NewMemory()
	defer c.Close()

	c.Set("k", "v", 0)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMemory_Invalidate(t *testing.T) {
	c := NewMemory()
	defer c.Close()

	c.Set("k", "v", time.Minute)
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	c := NewMemory()
	defer c.Close()

	done := make(chan bool)
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.Set("shared", j, time.Minute)
				c.Get("shared")
				c.Invalidate("shared")
			}
			done <- true
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
