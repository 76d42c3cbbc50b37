// Package memory provides in-memory implementations of the repository
// ports, used by tests and local development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

// Store keeps sessions and finalized windows in process memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]analytics.Session          // siteID -> sessions, sorted by StartTime
	windows  map[string]*analytics.AggregationWindow // window ID -> window
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string][]analytics.Session),
		windows:  make(map[string]*analytics.AggregationWindow),
	}
}

// AddSessions seeds session records for a site.
func (s *Store) AddSessions(sessions ...analytics.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range sessions {
		s.sessions[session.SiteID] = append(s.sessions[session.SiteID], session)
	}
	for siteID := range s.sessions {
		list := s.sessions[siteID]
		sort.Slice(list, func(i, j int) bool {
			return list[i].StartTime.Before(list[j].StartTime)
		})
	}
}

// QuerySessions implements repository.SessionReader.
func (s *Store) QuerySessions(ctx context.Context, siteID string, start, end time.Time) ([]analytics.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []analytics.Session
	for _, session := range s.sessions[siteID] {
		if session.StartTime.Before(start) {
			continue
		}
		if !session.StartTime.Before(end) {
			break
		}
		result = append(result, session)
	}
	return result, nil
}

// GetWindow implements repository.WindowStore.
func (s *Store) GetWindow(ctx context.Context, siteID string, timeframe analytics.Timeframe, start time.Time) (*analytics.AggregationWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	window, exists := s.windows[analytics.WindowID(siteID, timeframe, start)]
	if !exists {
		return nil, nil
	}
	copied := *window
	return &copied, nil
}

// PutWindow implements repository.WindowStore.
func (s *Store) PutWindow(ctx context.Context, window *analytics.AggregationWindow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := window.ID()
	if _, exists := s.windows[id]; exists {
		return appErrors.NewConflict("window already finalized: " + id)
	}
	copied := *window
	s.windows[id] = &copied
	return nil
}

// WindowCount returns the number of finalized windows. Test helper.
func (s *Store) WindowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}
