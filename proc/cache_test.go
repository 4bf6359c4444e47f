package proc

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_GetWithinTTL(t *testing.T) {
	clock := newTestClock()
	c := NewTTLCache[string, int](time.Minute)
	c.now = clock.Now

	c.Set("a", 1)
	clock.Advance(59 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTTLCache_ExpiredIsMissWithoutSweep(t *testing.T) {
	clock := newTestClock()
	c := NewTTLCache[string, int](time.Minute)
	c.now = clock.Now

	c.Set("a", 1)
	clock.Advance(time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "expired entry stays until swept")
}

func TestTTLCache_SweepExpired(t *testing.T) {
	clock := newTestClock()
	c := NewTTLCache[string, int](time.Minute)
	c.now = clock.Now

	c.Set("old1", 1)
	c.Set("old2", 2)
	clock.Advance(45 * time.Second)
	c.Set("fresh", 3)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 2, c.SweepExpired())
	assert.Equal(t, 1, c.Len())

	v, ok := c.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestTTLCache_SetRefreshesAge(t *testing.T) {
	clock := newTestClock()
	c := NewTTLCache[string, string](time.Minute)
	c.now = clock.Now

	c.Set("k", "v1")
	clock.Advance(50 * time.Second)
	c.Set("k", "v2")
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := NewTTLCache[string, int](time.Hour)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			c.Set(key, i)
			c.Get(key)
			c.SweepExpired()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, c.Len())
}
