package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
)

const (
	tierFast = "fast"
	tierSlow = "slow"
)

// FallbackFunc computes a value on cache miss.
type FallbackFunc func(ctx context.Context) (any, error)

// Options controls which tiers a value is written to and with what TTLs.
// The zero value writes to both tiers with their configured default TTLs.
type Options struct {
	// FastOnly writes/reads the fast tier exclusively.
	FastOnly bool
	// SlowOnly writes the slow tier exclusively.
	SlowOnly bool

	// FastTTL overrides the fast tier default TTL when positive.
	FastTTL time.Duration
	// SlowTTL overrides the slow tier default TTL when positive.
	SlowTTL time.Duration
}

// WarmOperation is one named cache warming step: a key derivation plus a
// producer whose result is stored directly.
type WarmOperation struct {
	Name    string
	Key     func(siteID string) string
	Produce func(ctx context.Context, siteID string) (any, error)
	Options Options
}

// WarmResult accumulates per-operation outcomes of a warming pass.
type WarmResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// WarmStats counts warming activity across the store lifetime.
type WarmStats struct {
	Requests  int64 `json:"requests"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

// Stats is the full statistics snapshot of the store.
type Stats struct {
	Fast            TierStats `json:"fast"`
	Slow            TierStats `json:"slow"`
	Requests        int64     `json:"requests"`
	OverallHitRate  float64   `json:"overallHitRate"`
	Warming         WarmStats `json:"warming"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Store is the two-tier cache: a small fast tier with short TTLs for cheap
// volatile results, and a larger slow tier with long TTLs for expensive
// aggregates. Reads promote slow-tier hits into the fast tier.
type Store struct {
	fast *memoryTier
	slow *memoryTier

	logger  *zap.Logger
	metrics *observability.Collector

	cleanupInterval time.Duration

	mu       sync.Mutex
	requests int64
	warm     WarmStats
	warmOps  []WarmOperation
}

// NewStore creates a two-tier cache store from configuration.
func NewStore(cfg config.Cache, logger *zap.Logger, metrics *observability.Collector) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fast:            newMemoryTier(tierFast, cfg.FastMaxItems, cfg.FastTTL, logger),
		slow:            newMemoryTier(tierSlow, cfg.SlowMaxItems, cfg.SlowTTL, logger),
		logger:          logger,
		metrics:         metrics,
		cleanupInterval: cfg.CleanupInterval,
	}
}

// Start launches the expired-item sweeps for both tiers.
func (s *Store) Start() {
	s.fast.startCleanup(s.cleanupInterval)
	s.slow.startCleanup(s.cleanupInterval)
}

// Stop halts the background sweeps.
func (s *Store) Stop() {
	s.fast.stopCleanup()
	s.slow.stopCleanup()
}

// Get looks up the fast tier, then the slow tier (promoting a slow-tier hit
// into the fast tier), and finally invokes the fallback producer if one is
// supplied, storing its non-nil result. A miss without fallback returns
// (nil, nil). Cache-internal faults are never surfaced: at worst the call
// degrades to always computing via the fallback.
func (s *Store) Get(ctx context.Context, key string, fallback FallbackFunc, opts Options) (any, error) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	if value, ok := s.fast.get(key); ok {
		s.metrics.RecordCacheHit(tierFast)
		return value, nil
	}
	s.metrics.RecordCacheMiss(tierFast)

	if !opts.FastOnly {
		if value, ok := s.slow.get(key); ok {
			s.metrics.RecordCacheHit(tierSlow)
			// Promotion keeps frequently accessed long-lived results
			// fast without recomputing them.
			evicted := s.fast.set(key, value, opts.FastTTL)
			s.metrics.RecordCacheEviction(tierFast, evicted)
			return value, nil
		}
		s.metrics.RecordCacheMiss(tierSlow)
	}

	if fallback == nil {
		return nil, nil
	}

	value, err := fallback(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	s.Set(key, value, opts)
	return value, nil
}

// Set writes a value to one or both tiers per the options.
func (s *Store) Set(key string, value any, opts Options) {
	if !opts.SlowOnly {
		evicted := s.fast.set(key, value, opts.FastTTL)
		s.metrics.RecordCacheEviction(tierFast, evicted)
	}
	if !opts.FastOnly {
		evicted := s.slow.set(key, value, opts.SlowTTL)
		s.metrics.RecordCacheEviction(tierSlow, evicted)
	}
}

// Delete removes a single key from both tiers.
func (s *Store) Delete(key string) {
	s.fast.delete(key)
	s.slow.delete(key)
}

// Invalidate deletes all keys matching the wildcard pattern from both tiers
// and returns the number of distinct keys removed.
func (s *Store) Invalidate(pattern string) int {
	matched := make(map[string]struct{})
	for _, key := range s.fast.keysMatching(pattern) {
		matched[key] = struct{}{}
	}
	for _, key := range s.slow.keysMatching(pattern) {
		matched[key] = struct{}{}
	}

	for key := range matched {
		s.fast.delete(key)
		s.slow.delete(key)
	}

	if len(matched) > 0 {
		s.logger.Debug("Invalidated cache entries",
			zap.String("pattern", pattern),
			zap.Int("count", len(matched)),
		)
	}
	return len(matched)
}

// RegisterWarmOperation adds a named warming step executed by Warm.
func (s *Store) RegisterWarmOperation(op WarmOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warmOps = append(s.warmOps, op)
}

// Warm executes every registered warming operation for the site, storing
// each produced value directly. Individual failures are accumulated and do
// not abort the pass.
func (s *Store) Warm(ctx context.Context, siteID string) WarmResult {
	s.mu.Lock()
	s.warm.Requests++
	ops := make([]WarmOperation, len(s.warmOps))
	copy(ops, s.warmOps)
	s.mu.Unlock()

	result := WarmResult{Failed: make(map[string]string)}

	for _, op := range ops {
		value, err := op.Produce(ctx, siteID)
		if err != nil {
			result.Failed[op.Name] = err.Error()
			s.mu.Lock()
			s.warm.Failures++
			s.mu.Unlock()
			s.logger.Warn("Cache warm operation failed",
				zap.String("operation", op.Name),
				zap.String("siteID", siteID),
				zap.Error(err),
			)
			continue
		}
		if value != nil {
			s.Set(op.Key(siteID), value, op.Options)
		}
		result.Succeeded = append(result.Succeeded, op.Name)
		s.mu.Lock()
		s.warm.Successes++
		s.mu.Unlock()
	}

	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	return result
}

// Stats returns a statistics snapshot with capacity-pressure
// recommendations.
func (s *Store) Stats() Stats {
	fast := s.fast.snapshotStats()
	slow := s.slow.snapshotStats()

	s.mu.Lock()
	requests := s.requests
	warm := s.warm
	s.mu.Unlock()

	hits := fast.Hits + slow.Hits
	misses := fast.Misses + slow.Misses
	overall := float64(0)
	if total := hits + misses; total > 0 {
		overall = float64(hits) / float64(total)
	}

	stats := Stats{
		Fast:           fast,
		Slow:           slow,
		Requests:       requests,
		OverallHitRate: overall,
		Warming:        warm,
	}

	if fast.Evictions > 0 && fast.Items >= fast.MaxItems {
		stats.Recommendations = append(stats.Recommendations,
			"fast tier at capacity and evicting; consider raising fast_max_items")
	}
	if slow.Evictions > 0 && slow.Items >= slow.MaxItems {
		stats.Recommendations = append(stats.Recommendations,
			"slow tier at capacity and evicting; consider raising slow_max_items")
	}
	if requests > 100 && overall < 0.5 {
		stats.Recommendations = append(stats.Recommendations,
			"overall hit rate below 50%; review TTLs and invalidation patterns")
	}

	return stats
}
