// Package analytics holds the domain types of the background computation
// subsystem: raw session records read from the document store and the
// time-bucketed rollups derived from them.
package analytics

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe identifies the granularity of an aggregation window.
type Timeframe string

const (
	TimeframeHourly  Timeframe = "hourly"
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(strings.ToLower(s)) {
	case TimeframeHourly:
		return TimeframeHourly, nil
	case TimeframeDaily:
		return TimeframeDaily, nil
	case TimeframeWeekly:
		return TimeframeWeekly, nil
	case TimeframeMonthly:
		return TimeframeMonthly, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// PageVisit is a single page view within a session.
type PageVisit struct {
	Path     string  `json:"path" dynamodbav:"Path"`
	Duration float64 `json:"duration" dynamodbav:"Duration"` // seconds
}

// Session is one visitor session as recorded by the tracking pipeline.
// The worker treats sessions as a read-only source of truth.
type Session struct {
	ID     string `json:"id" dynamodbav:"SessionID"`
	SiteID string `json:"siteId" dynamodbav:"SiteID"`
	UserID string `json:"userId" dynamodbav:"UserID"`

	StartTime time.Time `json:"startTime" dynamodbav:"StartTime"`
	Duration  float64   `json:"duration" dynamodbav:"Duration"` // seconds
	PageViews int       `json:"pageViews" dynamodbav:"PageViews"`

	Pages []PageVisit `json:"pages,omitempty" dynamodbav:"Pages"`

	IsBounce        bool `json:"isBounce" dynamodbav:"IsBounce"`
	WalletConnected bool `json:"walletConnected" dynamodbav:"WalletConnected"`
	Converted       bool `json:"converted" dynamodbav:"Converted"`

	// UserFirstSeen is the visitor's first recorded visit, denormalized
	// onto each session by the tracking pipeline.
	UserFirstSeen time.Time  `json:"userFirstSeen" dynamodbav:"UserFirstSeen"`
	ConvertedAt   *time.Time `json:"convertedAt,omitempty" dynamodbav:"ConvertedAt,omitempty"`

	Campaign string `json:"campaign,omitempty" dynamodbav:"Campaign"`
	Referrer string `json:"referrer,omitempty" dynamodbav:"Referrer"`

	Device  string `json:"device,omitempty" dynamodbav:"Device"`
	Browser string `json:"browser,omitempty" dynamodbav:"Browser"`
	Country string `json:"country,omitempty" dynamodbav:"Country"`

	// Segment is the ML-assigned user segment label, if any.
	Segment string `json:"segment,omitempty" dynamodbav:"Segment"`
}

// CoreMetrics are the headline counters of a window.
type CoreMetrics struct {
	SessionCount       int     `json:"sessionCount"`
	UniqueUsers        int     `json:"uniqueUsers"`
	PageViews          int     `json:"pageViews"`
	WalletConnections  int     `json:"walletConnections"`
	BounceRate         float64 `json:"bounceRate"`         // percent, 2dp
	AvgSessionDuration float64 `json:"avgSessionDuration"` // seconds, 2dp
	ConversionRate     float64 `json:"conversionRate"`     // percent, 2dp
	NewVisitors        int     `json:"newVisitors"`
	ReturningVisitors  int     `json:"returningVisitors"`
}

// TrafficSource is one entry of the ranked source breakdown.
type TrafficSource struct {
	Source string `json:"source"`
	Visits int    `json:"visits"`
}

// PageMetrics is one entry of the ranked page breakdown.
type PageMetrics struct {
	Path        string  `json:"path"`
	Views       int     `json:"views"`
	BounceRate  float64 `json:"bounceRate"`  // percent, 2dp
	AvgDuration float64 `json:"avgDuration"` // seconds, 2dp
}

// CountryMetrics is one entry of the geographic breakdown.
type CountryMetrics struct {
	Country  string `json:"country"`
	Sessions int    `json:"sessions"`
}

// JourneyMetrics summarize per-visitor journeys within a window.
type JourneyMetrics struct {
	AvgSessionsPerJourney  float64 `json:"avgSessionsPerJourney"`
	AvgTimePerJourney      float64 `json:"avgTimePerJourney"` // seconds, 2dp
	AvgPageViewsPerJourney float64 `json:"avgPageViewsPerJourney"`
	ConversionRate         float64 `json:"conversionRate"` // percent, 2dp
	AvgDaysToConversion    float64 `json:"avgDaysToConversion"`
}

// AggregationWindow is the finalized rollup for one (site, timeframe,
// bucket) triple. A window is computed at most once.
type AggregationWindow struct {
	SiteID    string    `json:"siteId"`
	Timeframe Timeframe `json:"timeframe"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`

	Core           CoreMetrics      `json:"core"`
	TrafficSources []TrafficSource  `json:"trafficSources"`
	TopPages       []PageMetrics    `json:"topPages"`
	Devices        map[string]int   `json:"devices"`
	Browsers       map[string]int   `json:"browsers"`
	Countries      []CountryMetrics `json:"countries"`
	Journeys       JourneyMetrics   `json:"journeys"`
	Segments       map[string]int   `json:"segments"`

	ComputedAt time.Time `json:"computedAt"`
}

// ID returns the canonical identity of the window, used both as the
// in-flight guard key and the persistence key.
func (w *AggregationWindow) ID() string {
	return WindowID(w.SiteID, w.Timeframe, w.Start)
}

// WindowID builds the canonical window identity for a (site, timeframe,
// bucket start) triple.
func WindowID(siteID string, timeframe Timeframe, start time.Time) string {
	return fmt.Sprintf("%s:%s:%d", siteID, timeframe, start.UTC().Unix())
}
