package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierSetGet(t *testing.T) {
	tier := newMemoryTier("test", 10, time.Minute, nil)

	tier.set("a", 1, 0)
	value, ok := tier.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = tier.get("missing")
	assert.False(t, ok)
}

func TestTierTTLExpiry(t *testing.T) {
	tier := newMemoryTier("test", 10, time.Minute, nil)

	tier.set("short", "v", 10*time.Millisecond)
	_, ok := tier.get("short")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = tier.get("short")
	assert.False(t, ok, "expired item must not be served")
	assert.Equal(t, 0, tier.len(), "expired item is removed on access")
}

func TestTierLRUEviction(t *testing.T) {
	tier := newMemoryTier("test", 3, time.Minute, nil)

	tier.set("a", 1, 0)
	tier.set("b", 2, 0)
	tier.set("c", 3, 0)

	// Touch "a" so "b" becomes the least recently used.
	tier.get("a")

	evicted := tier.set("d", 4, 0)
	assert.Equal(t, 1, evicted)

	_, ok := tier.get("b")
	assert.False(t, ok, "least recently used item is evicted first")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := tier.get(key)
		assert.True(t, ok, "key %q should survive", key)
	}
}

func TestTierSetOverwriteDoesNotEvict(t *testing.T) {
	tier := newMemoryTier("test", 2, time.Minute, nil)

	tier.set("a", 1, 0)
	tier.set("b", 2, 0)
	evicted := tier.set("a", 10, 0)
	assert.Equal(t, 0, evicted)

	value, _ := tier.get("a")
	assert.Equal(t, 10, value)
	assert.Equal(t, 2, tier.len())
}

func TestTierStats(t *testing.T) {
	tier := newMemoryTier("test", 10, time.Minute, nil)

	tier.set("a", 1, 0)
	tier.get("a")
	tier.get("a")
	tier.get("missing")
	tier.delete("a")

	stats := tier.snapshotStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Deletes)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestTierCleanupSweep(t *testing.T) {
	tier := newMemoryTier("test", 10, time.Minute, nil)
	tier.set("short", "v", 5*time.Millisecond)
	tier.set("long", "v", time.Hour)

	tier.startCleanup(10 * time.Millisecond)
	defer tier.stopCleanup()

	assert.Eventually(t, func() bool {
		return tier.len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTierStopWithoutStartReturns(t *testing.T) {
	tier := newMemoryTier("test", 10, time.Minute, nil)

	stopped := make(chan struct{})
	go func() {
		tier.stopCleanup()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stopCleanup blocked without a running sweep")
	}
}

func TestTierStopTwice(t *testing.T) {
	tier := newMemoryTier("test", 10, time.Minute, nil)
	tier.startCleanup(time.Millisecond)

	tier.stopCleanup()
	assert.NotPanics(t, func() { tier.stopCleanup() })
}

func TestTierStartTwiceSingleSweep(t *testing.T) {
	tier := newMemoryTier("test", 10, time.Minute, nil)
	tier.startCleanup(time.Millisecond)
	tier.startCleanup(time.Millisecond)

	// Only one sweep goroutine may own the done channel, so a single
	// stop must return.
	tier.stopCleanup()
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		str     string
		pattern string
		want    bool
	}{
		{"analytics:site-1:abcd1234", "analytics:site-1:*", true},
		{"analytics:site-2:abcd1234", "analytics:site-1:*", false},
		{"journeys:site-1", "*site-1*", true},
		{"analytics:site-1", "*:site-1", true},
		{"analytics:site-1:x", "*:site-1", false},
		{"anything", "*", true},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s~%s", tt.str, tt.pattern), func(t *testing.T) {
			assert.Equal(t, tt.want, matchPattern(tt.str, tt.pattern))
		})
	}
}
