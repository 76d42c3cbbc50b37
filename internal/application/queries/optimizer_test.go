package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/cache"
)

func newTestCache() *cache.Store {
	return cache.NewStore(config.Cache{
		FastTTL:         5 * time.Minute,
		SlowTTL:         time.Hour,
		FastMaxItems:    100,
		SlowMaxItems:    500,
		CleanupInterval: time.Minute,
	}, nil, nil)
}

func TestOptimizerRunMissThenHit(t *testing.T) {
	optimizer := NewOptimizer(newTestCache(), time.Second, nil, nil)
	calls := 0
	query := func(ctx context.Context) (any, error) {
		calls++
		return 42, nil
	}

	value, err := optimizer.Run(context.Background(), "dashboard", "q:site-1", query, cache.Options{})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	value, err = optimizer.Run(context.Background(), "dashboard", "q:site-1", query, cache.Options{})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, calls)

	stats := optimizer.Stats()["dashboard"]
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestOptimizerSlowQueryDetection(t *testing.T) {
	optimizer := NewOptimizer(newTestCache(), 10*time.Millisecond, nil, nil)

	_, err := optimizer.Run(context.Background(), "heavy", "q:slow", func(ctx context.Context) (any, error) {
		time.Sleep(25 * time.Millisecond)
		return "done", nil
	}, cache.Options{})
	require.NoError(t, err)

	_, err = optimizer.Run(context.Background(), "heavy", "q:fast", func(ctx context.Context) (any, error) {
		return "done", nil
	}, cache.Options{})
	require.NoError(t, err)

	stats := optimizer.Stats()["heavy"]
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(1), stats.SlowQueries)
	assert.Greater(t, stats.AvgDuration, time.Duration(0))
}

func TestOptimizerErrorPropagatesWithoutRetry(t *testing.T) {
	optimizer := NewOptimizer(newTestCache(), time.Second, nil, nil)
	wantErr := errors.New("store unavailable")
	calls := 0

	_, err := optimizer.Run(context.Background(), "dashboard", "q:fail", func(ctx context.Context) (any, error) {
		calls++
		return nil, wantErr
	}, cache.Options{})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls, "the optimizer never retries")

	stats := optimizer.Stats()["dashboard"]
	assert.Equal(t, int64(1), stats.Count)
	assert.Equal(t, int64(0), stats.CacheHits)
}

func TestOptimizerDefaultThreshold(t *testing.T) {
	optimizer := NewOptimizer(newTestCache(), 0, nil, nil)
	assert.Equal(t, time.Second, optimizer.slowThreshold)
}

func TestOptimizerReset(t *testing.T) {
	optimizer := NewOptimizer(newTestCache(), time.Second, nil, nil)

	_, err := optimizer.Run(context.Background(), "dashboard", "q:1", func(ctx context.Context) (any, error) {
		return 1, nil
	}, cache.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, optimizer.Stats())

	optimizer.Reset()
	assert.Empty(t, optimizer.Stats())
}
