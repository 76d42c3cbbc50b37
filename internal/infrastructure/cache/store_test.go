package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
)

func newTestStore() *Store {
	return NewStore(config.Cache{
		FastTTL:         5 * time.Minute,
		SlowTTL:         time.Hour,
		FastMaxItems:    100,
		SlowMaxItems:    500,
		CleanupInterval: time.Minute,
	}, nil, nil)
}

func TestStoreGetMissWithoutFallback(t *testing.T) {
	store := newTestStore()

	value, err := store.Get(context.Background(), "missing", nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestStoreGetFallbackComputesAndStores(t *testing.T) {
	store := newTestStore()
	calls := 0

	fallback := func(ctx context.Context) (any, error) {
		calls++
		return "computed", nil
	}

	value, err := store.Get(context.Background(), "key", fallback, Options{})
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.Equal(t, 1, calls)

	// Second read is served from cache.
	value, err = store.Get(context.Background(), "key", fallback, Options{})
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.Equal(t, 1, calls)
}

func TestStoreGetFallbackNilNotStored(t *testing.T) {
	store := newTestStore()
	calls := 0

	fallback := func(ctx context.Context) (any, error) {
		calls++
		return nil, nil
	}

	value, err := store.Get(context.Background(), "absent", fallback, Options{})
	require.NoError(t, err)
	assert.Nil(t, value)

	// A nil result is not cached, so the fallback runs again.
	_, err = store.Get(context.Background(), "absent", fallback, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStoreGetFallbackError(t *testing.T) {
	store := newTestStore()
	wantErr := errors.New("source down")

	_, err := store.Get(context.Background(), "key", func(ctx context.Context) (any, error) {
		return nil, wantErr
	}, Options{})
	assert.ErrorIs(t, err, wantErr)

	// Nothing was stored for the failed key.
	value, err := store.Get(context.Background(), "key", nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestStorePromotionFromSlowTier(t *testing.T) {
	store := newTestStore()

	store.Set("key", "v", Options{SlowOnly: true})
	_, ok := store.fast.get("key")
	require.False(t, ok, "slow-only set must not touch the fast tier")

	value, err := store.Get(context.Background(), "key", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	_, ok = store.fast.get("key")
	assert.True(t, ok, "slow-tier hit promotes into the fast tier")
}

func TestStoreFastOnlySkipsSlowTier(t *testing.T) {
	store := newTestStore()

	store.Set("key", "v", Options{FastOnly: true})
	_, ok := store.slow.get("key")
	assert.False(t, ok)

	// FastOnly reads do not consult the slow tier.
	store.slow.set("other", "s", 0)
	value, err := store.Get(context.Background(), "other", nil, Options{FastOnly: true})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestStoreInvalidateCountsDistinctKeys(t *testing.T) {
	store := newTestStore()

	// "a" lives in both tiers, "b" only in slow, "c" does not match.
	store.Set("analytics:site-1:a", 1, Options{})
	store.Set("analytics:site-1:b", 2, Options{SlowOnly: true})
	store.Set("analytics:site-2:c", 3, Options{})

	count := store.Invalidate("analytics:site-1:*")
	assert.Equal(t, 2, count, "a key present in both tiers counts once")

	value, err := store.Get(context.Background(), "analytics:site-1:a", nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, value)

	value, err = store.Get(context.Background(), "analytics:site-2:c", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, value)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore()
	store.Set("key", "v", Options{})
	store.Delete("key")

	value, err := store.Get(context.Background(), "key", nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestStoreWarmPartialFailure(t *testing.T) {
	store := newTestStore()

	store.RegisterWarmOperation(WarmOperation{
		Name: "ok-op",
		Key:  func(siteID string) string { return "warm:" + siteID },
		Produce: func(ctx context.Context, siteID string) (any, error) {
			return "warmed", nil
		},
	})
	store.RegisterWarmOperation(WarmOperation{
		Name: "bad-op",
		Key:  func(siteID string) string { return "warm-bad:" + siteID },
		Produce: func(ctx context.Context, siteID string) (any, error) {
			return nil, errors.New("upstream unavailable")
		},
	})

	result := store.Warm(context.Background(), "site-1")
	assert.Equal(t, []string{"ok-op"}, result.Succeeded)
	require.Contains(t, result.Failed, "bad-op")

	value, err := store.Get(context.Background(), "warm:site-1", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "warmed", value, "failures must not abort the remaining operations")

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Warming.Requests)
	assert.Equal(t, int64(1), stats.Warming.Successes)
	assert.Equal(t, int64(1), stats.Warming.Failures)
}

func TestStoreStatsOverallHitRate(t *testing.T) {
	store := newTestStore()
	store.Set("key", "v", Options{})

	store.Get(context.Background(), "key", nil, Options{})
	store.Get(context.Background(), "missing", nil, Options{})

	stats := store.Stats()
	assert.Equal(t, int64(2), stats.Requests)
	assert.Greater(t, stats.OverallHitRate, 0.0)
	assert.Less(t, stats.OverallHitRate, 1.0)
}

func TestStoreLifecycleTolerantOfMisuse(t *testing.T) {
	started := newTestStore()
	started.Start()
	started.Stop()
	assert.NotPanics(t, started.Stop)

	// Stopping a store that was never started must not block.
	assert.NotPanics(t, newTestStore().Stop)
}

func TestGenerateKey(t *testing.T) {
	plain := GenerateKey("analytics", "site-1", nil)
	assert.Equal(t, "analytics:site-1", plain)

	a := GenerateKey("analytics", "site-1", map[string]any{"timeframe": "hourly", "start": 1709287200})
	b := GenerateKey("analytics", "site-1", map[string]any{"start": 1709287200, "timeframe": "hourly"})
	assert.Equal(t, a, b, "parameter order must not change the key")
	assert.Len(t, a, len(plain)+1+8, "hash suffix is 8 hex chars")

	c := GenerateKey("analytics", "site-1", map[string]any{"timeframe": "daily", "start": 1709287200})
	assert.NotEqual(t, a, c)
}
