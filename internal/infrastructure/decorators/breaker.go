// Package decorators wraps the repository ports with resilience behavior
// that does not belong in the adapters themselves.
package decorators

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/repository"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// mapBreakerErr converts an open-circuit rejection into a transient error
// so callers retry later instead of treating it as a data fault.
func mapBreakerErr(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return appErrors.NewTransient("analytics store circuit open", err)
	}
	return err
}

// BreakerSessionReader guards a session source with a circuit breaker.
type BreakerSessionReader struct {
	inner   repository.SessionReader
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerSessionReader wraps reader with a circuit breaker.
func NewBreakerSessionReader(reader repository.SessionReader, logger *zap.Logger) *BreakerSessionReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerSessionReader{
		inner:   reader,
		breaker: newBreaker("session-reader", logger),
	}
}

func (r *BreakerSessionReader) QuerySessions(ctx context.Context, siteID string, start, end time.Time) ([]analytics.Session, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		return r.inner.QuerySessions(ctx, siteID, start, end)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return result.([]analytics.Session), nil
}

// BreakerWindowStore guards a window store with a circuit breaker.
// Conflict errors are expected write-once collisions and never count as
// breaker failures.
type BreakerWindowStore struct {
	inner   repository.WindowStore
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerWindowStore wraps store with a circuit breaker.
func NewBreakerWindowStore(store repository.WindowStore, logger *zap.Logger) *BreakerWindowStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerWindowStore{
		inner:   store,
		breaker: newBreaker("window-store", logger),
	}
}

func (s *BreakerWindowStore) GetWindow(ctx context.Context, siteID string, timeframe analytics.Timeframe, start time.Time) (*analytics.AggregationWindow, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		window, err := s.inner.GetWindow(ctx, siteID, timeframe, start)
		if err != nil {
			return nil, err
		}
		return window, nil
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return result.(*analytics.AggregationWindow), nil
}

func (s *BreakerWindowStore) PutWindow(ctx context.Context, window *analytics.AggregationWindow) error {
	result, err := s.breaker.Execute(func() (any, error) {
		err := s.inner.PutWindow(ctx, window)
		if appErrors.IsConflict(err) {
			// Surface the conflict without tripping the breaker.
			return err, nil
		}
		return nil, err
	})
	if err != nil {
		return mapBreakerErr(err)
	}
	if conflict, ok := result.(error); ok {
		return conflict
	}
	return nil
}
