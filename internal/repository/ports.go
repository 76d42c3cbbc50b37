// Package repository defines the ports through which the background
// computation subsystem reaches the analytics document store. The store
// itself (schema, indexing, persistence) is an external collaborator.
package repository

import (
	"context"
	"time"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
)

// SessionReader reads raw session records by site and time range.
// The range is closed-open: [start, end).
type SessionReader interface {
	QuerySessions(ctx context.Context, siteID string, start, end time.Time) ([]analytics.Session, error)
}

// WindowStore persists finalized aggregation windows. Windows are
// write-once: PutWindow returns a conflict error when a window already
// exists for the same identity.
type WindowStore interface {
	// GetWindow returns the finalized window for the triple, or nil when
	// none exists yet.
	GetWindow(ctx context.Context, siteID string, timeframe analytics.Timeframe, start time.Time) (*analytics.AggregationWindow, error)

	// PutWindow stores a finalized window. Returns a conflict error if a
	// window with the same identity was already finalized.
	PutWindow(ctx context.Context, window *analytics.AggregationWindow) error
}
