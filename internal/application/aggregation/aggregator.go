// Package aggregation computes time-bucketed analytics rollups from raw
// session records. Each (site, timeframe, bucket) window is computed at
// most once: an in-flight guard deduplicates concurrent computations and a
// write-once store deduplicates across completed ones.
package aggregation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/cache"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/repository"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

// Status describes how an Aggregate call resolved.
type Status string

const (
	// StatusComputed means this call computed and persisted the window.
	StatusComputed Status = "computed"
	// StatusExists means the window was already finalized; the stored
	// window is returned unchanged.
	StatusExists Status = "exists"
	// StatusInFlight means another computation for the same window is
	// running; the call returned without doing work.
	StatusInFlight Status = "already_processing"
)

// Result is the outcome of an Aggregate call. Window is nil only for
// StatusInFlight.
type Result struct {
	Status Status                       `json:"status"`
	Window *analytics.AggregationWindow `json:"window,omitempty"`
}

// Aggregator computes and serves aggregation windows.
type Aggregator struct {
	sessions repository.SessionReader
	windows  repository.WindowStore
	cache    *cache.Store
	logger   *zap.Logger
	metrics  *observability.Collector

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates an aggregator over the given session source and window store.
func New(sessions repository.SessionReader, windows repository.WindowStore, cacheStore *cache.Store, logger *zap.Logger, metrics *observability.Collector) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		sessions: sessions,
		windows:  windows,
		cache:    cacheStore,
		logger:   logger,
		metrics:  metrics,
		inFlight: make(map[string]struct{}),
	}
}

// Aggregate computes the window containing ts for the given site and
// timeframe. Duplicate concurrent calls short-circuit via the in-flight
// guard; a previously finalized window is returned unchanged. Any reducer
// or I/O failure aborts the whole window with nothing persisted.
func (a *Aggregator) Aggregate(ctx context.Context, siteID string, timeframe analytics.Timeframe, ts time.Time) (*Result, error) {
	bucket := analytics.BucketRange(timeframe, ts)
	windowID := analytics.WindowID(siteID, timeframe, bucket.Start)

	if !a.acquire(windowID) {
		a.logger.Debug("Aggregation already in flight",
			zap.String("window", windowID))
		return &Result{Status: StatusInFlight}, nil
	}
	// The guard must never outlive this call, even on error paths.
	defer a.release(windowID)

	existing, err := a.windows.GetWindow(ctx, siteID, timeframe, bucket.Start)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check for existing window")
	}
	if existing != nil {
		return &Result{Status: StatusExists, Window: existing}, nil
	}

	started := time.Now()
	window, err := a.compute(ctx, siteID, timeframe, bucket)
	if err != nil {
		return nil, err
	}

	if err := a.windows.PutWindow(ctx, window); err != nil {
		if appErrors.IsConflict(err) {
			// A concurrent worker finalized the window first. Treat as a
			// successful no-op and return the stored window.
			stored, getErr := a.windows.GetWindow(ctx, siteID, timeframe, bucket.Start)
			if getErr == nil && stored != nil {
				return &Result{Status: StatusExists, Window: stored}, nil
			}
			return nil, appErrors.Wrap(err, "window conflict but stored window unavailable")
		}
		return nil, appErrors.Wrap(err, "failed to persist window")
	}

	a.cache.Set(WindowCacheKey(siteID, timeframe, bucket.Start), window, cache.Options{})

	elapsed := time.Since(started)
	a.metrics.RecordAggregation(string(timeframe), elapsed)
	a.logger.Info("Aggregation window computed",
		zap.String("siteID", siteID),
		zap.String("timeframe", string(timeframe)),
		zap.Time("start", bucket.Start),
		zap.Int("sessions", window.Core.SessionCount),
		zap.Duration("duration", elapsed),
	)

	return &Result{Status: StatusComputed, Window: window}, nil
}

// compute fetches the current and prior session ranges and runs all
// reducers. Pure computation beyond the two range queries.
func (a *Aggregator) compute(ctx context.Context, siteID string, timeframe analytics.Timeframe, bucket analytics.Range) (*analytics.AggregationWindow, error) {
	current, err := a.sessions.QuerySessions(ctx, siteID, bucket.Start, bucket.End)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to query sessions")
	}

	prior := analytics.PriorRange(timeframe, bucket)
	priorSessions, err := a.sessions.QuerySessions(ctx, siteID, prior.Start, prior.End)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to query prior sessions")
	}

	return &analytics.AggregationWindow{
		SiteID:         siteID,
		Timeframe:      timeframe,
		Start:          bucket.Start,
		End:            bucket.End,
		Core:           reduceCore(current, priorSessions),
		TrafficSources: reduceTrafficSources(current),
		TopPages:       reduceTopPages(current),
		Devices:        reduceDevices(current),
		Browsers:       reduceBrowsers(current),
		Countries:      reduceCountries(current),
		Journeys:       reduceJourneys(current),
		Segments:       reduceSegments(current),
		ComputedAt:     time.Now().UTC(),
	}, nil
}

// GetWindow is the read contract consumed by the HTTP layer: the cached or
// persisted window for the triple, or nil when none exists yet.
func (a *Aggregator) GetWindow(ctx context.Context, siteID string, timeframe analytics.Timeframe, ts time.Time) (*analytics.AggregationWindow, error) {
	bucket := analytics.BucketRange(timeframe, ts)
	key := WindowCacheKey(siteID, timeframe, bucket.Start)

	value, err := a.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		window, err := a.windows.GetWindow(ctx, siteID, timeframe, bucket.Start)
		if err != nil {
			return nil, err
		}
		if window == nil {
			return nil, nil
		}
		return window, nil
	}, cache.Options{})
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	window, ok := value.(*analytics.AggregationWindow)
	if !ok {
		// A foreign value under our key; recover by reading through.
		return a.windows.GetWindow(ctx, siteID, timeframe, bucket.Start)
	}
	return window, nil
}

// ProcessJourneys recomputes journey metrics for an arbitrary site range
// and caches them. Backs the journey-processing job type.
func (a *Aggregator) ProcessJourneys(ctx context.Context, siteID string, start, end time.Time) (*analytics.JourneyMetrics, error) {
	sessions, err := a.sessions.QuerySessions(ctx, siteID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to query sessions for journeys")
	}

	metrics := reduceJourneys(sessions)
	key := cache.GenerateKey("journeys", siteID, map[string]any{
		"start": start.UTC().Unix(),
		"end":   end.UTC().Unix(),
	})
	a.cache.Set(key, &metrics, cache.Options{})

	return &metrics, nil
}

// InvalidateSite drops every cached artifact for a site. Called after
// writes that change the underlying data.
func (a *Aggregator) InvalidateSite(siteID string) int {
	n := a.cache.Invalidate("analytics:" + siteID + ":*")
	n += a.cache.Invalidate("journeys:" + siteID + ":*")
	return n
}

// WindowCacheKey builds the deterministic cache key mirroring a window.
func WindowCacheKey(siteID string, timeframe analytics.Timeframe, start time.Time) string {
	return cache.GenerateKey("analytics", siteID, map[string]any{
		"timeframe": string(timeframe),
		"start":     start.UTC().Unix(),
	})
}

func (a *Aggregator) acquire(windowID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.inFlight[windowID]; exists {
		return false
	}
	a.inFlight[windowID] = struct{}{}
	return true
}

func (a *Aggregator) release(windowID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, windowID)
}

// WarmOperations returns the fixed list of cache warming steps: the current
// bucket of each timeframe. Registered on the cache store at composition.
func WarmOperations(a *Aggregator) []cache.WarmOperation {
	timeframes := []analytics.Timeframe{
		analytics.TimeframeHourly,
		analytics.TimeframeDaily,
		analytics.TimeframeWeekly,
		analytics.TimeframeMonthly,
	}

	ops := make([]cache.WarmOperation, 0, len(timeframes))
	for _, tf := range timeframes {
		tf := tf
		ops = append(ops, cache.WarmOperation{
			Name: "window-" + string(tf),
			Key: func(siteID string) string {
				bucket := analytics.BucketRange(tf, time.Now())
				return WindowCacheKey(siteID, tf, bucket.Start)
			},
			Produce: func(ctx context.Context, siteID string) (any, error) {
				result, err := a.Aggregate(ctx, siteID, tf, time.Now())
				if err != nil {
					return nil, err
				}
				if result.Window == nil {
					return nil, nil
				}
				return result.Window, nil
			},
		})
	}
	return ops
}
