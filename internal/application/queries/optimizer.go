// Package queries wraps expensive read computations with the cache store
// and tracks per-query-type latency and hit statistics.
package queries

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/cache"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
)

// QueryStats are the process-wide counters for one query type.
type QueryStats struct {
	Count       int64         `json:"count"`
	CacheHits   int64         `json:"cacheHits"`
	SlowQueries int64         `json:"slowQueries"`
	AvgDuration time.Duration `json:"avgDuration"`
}

// Optimizer executes read queries through the cache store using the
// cache-aside pattern, measuring wall-clock time around the whole call.
// It performs no retries: retry belongs to the job scheduler and is never
// attempted on the synchronous read path.
type Optimizer struct {
	cache         *cache.Store
	logger        *zap.Logger
	metrics       *observability.Collector
	slowThreshold time.Duration

	mu    sync.Mutex
	stats map[string]*QueryStats
}

// NewOptimizer creates an optimizer with the given slow-query threshold.
func NewOptimizer(cacheStore *cache.Store, slowThreshold time.Duration, logger *zap.Logger, metrics *observability.Collector) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return &Optimizer{
		cache:         cacheStore,
		logger:        logger,
		metrics:       metrics,
		slowThreshold: slowThreshold,
		stats:         make(map[string]*QueryStats),
	}
}

// Run executes query through the cache under cacheKey, recording latency
// and hit statistics for queryType. The slow-query flag is independent of
// cache hit or miss: it measures the whole call including any fallback
// execution. Errors are logged and re-thrown to the caller.
func (o *Optimizer) Run(ctx context.Context, queryType, cacheKey string, query cache.FallbackFunc, opts cache.Options) (any, error) {
	started := time.Now()
	computed := false

	value, err := o.cache.Get(ctx, cacheKey, func(ctx context.Context) (any, error) {
		computed = true
		return query(ctx)
	}, opts)

	elapsed := time.Since(started)
	slow := elapsed > o.slowThreshold
	o.record(queryType, !computed, slow, elapsed)

	if slow {
		o.metrics.RecordSlowQuery(queryType)
		o.logger.Warn("Slow query detected",
			zap.String("queryType", queryType),
			zap.String("cacheKey", cacheKey),
			zap.Duration("duration", elapsed),
			zap.Duration("threshold", o.slowThreshold),
		)
	}

	if err != nil {
		o.logger.Error("Optimized query failed",
			zap.String("queryType", queryType),
			zap.String("cacheKey", cacheKey),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	return value, nil
}

func (o *Optimizer) record(queryType string, hit, slow bool, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := o.stats[queryType]
	if stats == nil {
		stats = &QueryStats{}
		o.stats[queryType] = stats
	}

	stats.Count++
	if hit {
		stats.CacheHits++
	}
	if slow {
		stats.SlowQueries++
	}
	// Incremental rolling mean keeps the counters O(1) per call.
	stats.AvgDuration += (elapsed - stats.AvgDuration) / time.Duration(stats.Count)
}

// Stats returns a snapshot of all per-type counters.
func (o *Optimizer) Stats() map[string]QueryStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	snapshot := make(map[string]QueryStats, len(o.stats))
	for queryType, stats := range o.stats {
		snapshot[queryType] = *stats
	}
	return snapshot
}

// Reset clears all counters.
func (o *Optimizer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = make(map[string]*QueryStats)
}
