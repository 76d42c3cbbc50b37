// Package jobs binds job types to their application-level handlers.
package jobs

import (
	"context"

	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/aggregation"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/queries"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/cache"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/scheduler"
)

// RegisterHandlers wires every externally submittable job type to its
// handler. The cleanup type stays internal to the scheduler.
func RegisterHandlers(s *scheduler.Scheduler, aggregator *aggregation.Aggregator, cacheStore *cache.Store, optimizer *queries.Optimizer) {
	s.RegisterHandler(scheduler.JobTypeAggregation, aggregationHandler(aggregator))
	s.RegisterHandler(scheduler.JobTypeCacheWarm, cacheWarmHandler(cacheStore))
	s.RegisterHandler(scheduler.JobTypeJourney, journeyHandler(aggregator))
	s.RegisterHandler(scheduler.JobTypeCompute, computeHandler(aggregator, optimizer))
}

func aggregationHandler(aggregator *aggregation.Aggregator) scheduler.HandlerFunc {
	return func(ctx context.Context, job scheduler.Job, progress func(int)) (any, error) {
		payload, ok := job.Payload.(*scheduler.AggregationPayload)
		if !ok {
			return nil, appErrors.NewInternal("aggregation job carried unexpected payload", nil)
		}
		timeframe, err := analytics.ParseTimeframe(payload.Timeframe)
		if err != nil {
			return nil, err
		}
		ts := payload.Timestamp
		if ts.IsZero() {
			ts = job.CreatedAt
		}

		progress(10)
		result, err := aggregator.Aggregate(ctx, payload.SiteID, timeframe, ts)
		if err != nil {
			return nil, err
		}
		progress(100)
		return result, nil
	}
}

func cacheWarmHandler(cacheStore *cache.Store) scheduler.HandlerFunc {
	return func(ctx context.Context, job scheduler.Job, progress func(int)) (any, error) {
		payload, ok := job.Payload.(*scheduler.CacheWarmPayload)
		if !ok {
			return nil, appErrors.NewInternal("cache warming job carried unexpected payload", nil)
		}
		result := cacheStore.Warm(ctx, payload.SiteID)
		progress(100)
		// Partial failure warms what it can; only a fully failed pass
		// fails the job so retry can help.
		if len(result.Succeeded) == 0 && len(result.Failed) > 0 {
			return result, appErrors.NewTransient("all cache warm operations failed", nil)
		}
		return result, nil
	}
}

func journeyHandler(aggregator *aggregation.Aggregator) scheduler.HandlerFunc {
	return func(ctx context.Context, job scheduler.Job, progress func(int)) (any, error) {
		payload, ok := job.Payload.(*scheduler.JourneyPayload)
		if !ok {
			return nil, appErrors.NewInternal("journey job carried unexpected payload", nil)
		}
		progress(10)
		metrics, err := aggregator.ProcessJourneys(ctx, payload.SiteID, payload.Start, payload.End)
		if err != nil {
			return nil, err
		}
		progress(100)
		return metrics, nil
	}
}

func computeHandler(aggregator *aggregation.Aggregator, optimizer *queries.Optimizer) scheduler.HandlerFunc {
	return func(ctx context.Context, job scheduler.Job, progress func(int)) (any, error) {
		payload, ok := job.Payload.(*scheduler.ComputePayload)
		if !ok {
			return nil, appErrors.NewInternal("compute job carried unexpected payload", nil)
		}
		timeframe, err := analytics.ParseTimeframe(payload.Timeframe)
		if err != nil {
			return nil, err
		}
		ts := payload.Timestamp
		if ts.IsZero() {
			ts = job.CreatedAt
		}
		bucket := analytics.BucketRange(timeframe, ts)
		key := aggregation.WindowCacheKey(payload.SiteID, timeframe, bucket.Start)

		progress(10)
		window, err := optimizer.Run(ctx, "analytics_compute:"+payload.Metric, key, func(ctx context.Context) (any, error) {
			result, err := aggregator.Aggregate(ctx, payload.SiteID, timeframe, ts)
			if err != nil {
				return nil, err
			}
			if result.Window == nil {
				return nil, nil
			}
			return result.Window, nil
		}, cache.Options{})
		if err != nil {
			return nil, err
		}
		progress(100)
		return window, nil
	}
}
