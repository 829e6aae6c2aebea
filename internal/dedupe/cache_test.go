// ABOUTME: Tests for the dedupe cache
// ABOUTME: Covers duplicate detection, TTL expiry, and size-bound eviction

package dedupe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeen_FirstTimeFalse(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.Seen("update-1"))
	assert.True(t, c.Seen("update-1"))
}

func TestSeen_DistinctKeys(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.Seen("update-1"))
	assert.False(t, c.Seen("update-2"))
}

func TestSeen_ExpiredKeyIsNew(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	assert.False(t, c.Seen("update-1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Seen("update-1"))
}

func TestSeen_EvictsAtCapacity(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	for i := 0; i < 4; i++ {
		assert.False(t, c.Seen(fmt.Sprintf("update-%d", i)))
	}

	c.mu.Lock()
	size := len(c.seen)
	c.mu.Unlock()
	assert.LessOrEqual(t, size, 3)
}

func TestClose_Twice(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
