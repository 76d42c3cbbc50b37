// Package cache implements the two-tier in-memory cache store of the
// background computation subsystem: a fast short-TTL tier in front of a
// slower long-TTL tier, with promotion on read, pattern invalidation and
// cache warming.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// memoryTier is one level of the cache hierarchy: a bounded in-memory map
// with LRU eviction and per-item TTL. Thread-safe.
type memoryTier struct {
	mu         sync.Mutex
	name       string
	items      map[string]*tierItem
	lruList    *list.List
	maxItems   int
	defaultTTL time.Duration

	// Statistics
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64

	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
	sweeping bool
	stopped  bool
}

// tierItem is a single cached entry.
type tierItem struct {
	key        string
	value      any
	expiry     time.Time
	lruElement *list.Element
}

// TierStats holds statistics for one tier.
type TierStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Deletes   int64   `json:"deletes"`
	Evictions int64   `json:"evictions"`
	Items     int     `json:"items"`
	MaxItems  int     `json:"maxItems"`
	HitRate   float64 `json:"hitRate"`
}

func newMemoryTier(name string, maxItems int, defaultTTL time.Duration, logger *zap.Logger) *memoryTier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &memoryTier{
		name:       name,
		items:      make(map[string]*tierItem),
		lruList:    list.New(),
		maxItems:   maxItems,
		defaultTTL: defaultTTL,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// get retrieves a value and reports whether it was present and unexpired.
func (t *memoryTier) get(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[key]
	if !exists {
		t.misses++
		return nil, false
	}

	if time.Now().After(item.expiry) {
		t.removeItem(item)
		t.misses++
		return nil, false
	}

	t.lruList.MoveToFront(item.lruElement)
	t.hits++
	return item.value, true
}

// set stores a value with the given TTL, evicting LRU items when the tier
// is at capacity. A zero TTL uses the tier default. Returns the number of
// entries evicted to make room.
func (t *memoryTier) set(key string, value any, ttl time.Duration) int {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, exists := t.items[key]; exists {
		t.removeItem(existing)
	}

	evicted := 0
	for len(t.items) >= t.maxItems && t.lruList.Len() > 0 {
		oldest := t.lruList.Back()
		if oldest == nil {
			break
		}
		t.removeItem(oldest.Value.(*tierItem))
		t.evictions++
		evicted++
	}

	item := &tierItem{
		key:    key,
		value:  value,
		expiry: time.Now().Add(ttl),
	}
	item.lruElement = t.lruList.PushFront(item)
	t.items[key] = item
	t.sets++

	return evicted
}

// delete removes a key and reports whether it was present.
func (t *memoryTier) delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[key]
	if !exists {
		return false
	}
	t.removeItem(item)
	t.deletes++
	return true
}

// keysMatching returns the live keys matching the wildcard pattern.
func (t *memoryTier) keysMatching(pattern string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var keys []string
	for key, item := range t.items {
		if now.After(item.expiry) {
			continue
		}
		if matchPattern(key, pattern) {
			keys = append(keys, key)
		}
	}
	return keys
}

// len returns the number of entries, including any not yet swept.
func (t *memoryTier) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// removeItem removes an item. Must be called with the lock held.
func (t *memoryTier) removeItem(item *tierItem) {
	if item.lruElement != nil {
		t.lruList.Remove(item.lruElement)
	}
	delete(t.items, item.key)
}

// snapshotStats returns a copy of the tier statistics.
func (t *memoryTier) snapshotStats() TierStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	hitRate := float64(0)
	if total := t.hits + t.misses; total > 0 {
		hitRate = float64(t.hits) / float64(total)
	}
	return TierStats{
		Hits:      t.hits,
		Misses:    t.misses,
		Sets:      t.sets,
		Deletes:   t.deletes,
		Evictions: t.evictions,
		Items:     len(t.items),
		MaxItems:  t.maxItems,
		HitRate:   hitRate,
	}
}

// startCleanup starts the background sweep of expired items. Repeated
// calls and calls after stopCleanup are no-ops.
func (t *memoryTier) startCleanup(interval time.Duration) {
	t.mu.Lock()
	if t.sweeping || t.stopped {
		t.mu.Unlock()
		return
	}
	t.sweeping = true
	t.mu.Unlock()

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.cleanupExpired()
			}
		}
	}()
}

// stopCleanup halts the background sweep. Safe to call more than once
// and without a preceding startCleanup; the tier cannot be restarted.
func (t *memoryTier) stopCleanup() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	sweeping := t.sweeping
	t.mu.Unlock()

	close(t.stop)
	if sweeping {
		<-t.done
	}
}

// cleanupExpired removes expired items from the tier.
func (t *memoryTier) cleanupExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	toRemove := make([]*tierItem, 0)
	for _, item := range t.items {
		if now.After(item.expiry) {
			toRemove = append(toRemove, item)
		}
	}
	for _, item := range toRemove {
		t.removeItem(item)
	}

	if len(toRemove) > 0 {
		t.logger.Debug("Cleaned up expired cache items",
			zap.String("tier", t.name),
			zap.Int("count", len(toRemove)),
		)
	}
}

// matchPattern implements wildcard pattern matching with * as the only
// metacharacter: "prefix*", "*suffix", "*infix*", "*" or an exact key.
func matchPattern(str, pattern string) bool {
	if pattern == "*" {
		return true
	}

	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")
	core := strings.Trim(pattern, "*")

	switch {
	case leading && trailing:
		return strings.Contains(str, core)
	case leading:
		return strings.HasSuffix(str, core)
	case trailing:
		return strings.HasPrefix(str, core)
	default:
		return str == pattern
	}
}
