package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
)

func TestReduceCoreEmptyWindow(t *testing.T) {
	core := reduceCore(nil, nil)

	// Every rate over zero sessions is 0, never NaN.
	assert.Equal(t, 0, core.SessionCount)
	assert.Equal(t, float64(0), core.BounceRate)
	assert.Equal(t, float64(0), core.AvgSessionDuration)
	assert.Equal(t, float64(0), core.ConversionRate)
}

func TestReduceCore(t *testing.T) {
	current := []analytics.Session{
		{UserID: "u1", Duration: 100, PageViews: 3, IsBounce: true, WalletConnected: true},
		{UserID: "u1", Duration: 50, PageViews: 2, Converted: true},
		{UserID: "u2", Duration: 10, PageViews: 1},
	}

	core := reduceCore(current, nil)
	assert.Equal(t, 3, core.SessionCount)
	assert.Equal(t, 2, core.UniqueUsers)
	assert.Equal(t, 6, core.PageViews)
	assert.Equal(t, 1, core.WalletConnections)
	assert.Equal(t, 33.33, core.BounceRate)
	assert.Equal(t, 53.33, core.AvgSessionDuration)
	assert.Equal(t, 33.33, core.ConversionRate)
	assert.Equal(t, 2, core.NewVisitors)
	assert.Equal(t, 0, core.ReturningVisitors)
}

func TestReduceCoreReturningVisitorsDeduplicated(t *testing.T) {
	current := []analytics.Session{
		{UserID: "u1"},
		{UserID: "u1"},
		{UserID: "u2"},
	}
	// u1 had three prior sessions but still counts as one returning user.
	prior := []analytics.Session{
		{UserID: "u1"},
		{UserID: "u1"},
		{UserID: "u1"},
		{UserID: "u3"},
	}

	core := reduceCore(current, prior)
	assert.Equal(t, 1, core.ReturningVisitors)
	assert.Equal(t, 1, core.NewVisitors)
}

func TestReduceCoreAnonymousSessionsExcludedFromUsers(t *testing.T) {
	current := []analytics.Session{
		{UserID: ""},
		{UserID: "u1"},
	}

	core := reduceCore(current, nil)
	assert.Equal(t, 2, core.SessionCount)
	assert.Equal(t, 1, core.UniqueUsers)
}

func TestReduceTrafficSourcesAttribution(t *testing.T) {
	sessions := []analytics.Session{
		{Campaign: "spring-launch", Referrer: "https://x.com/post"},
		{Campaign: "spring-launch"},
		{Referrer: "https://www.google.com/search?q=x"},
		{Referrer: "google.com"},
		{},
	}

	sources := reduceTrafficSources(sessions)
	require.Len(t, sources, 3)
	// Equal visit counts rank alphabetically.
	assert.Equal(t, analytics.TrafficSource{Source: "google.com", Visits: 2}, sources[0])
	assert.Equal(t, analytics.TrafficSource{Source: "spring-launch", Visits: 2}, sources[1])
	assert.Equal(t, analytics.TrafficSource{Source: "Direct", Visits: 1}, sources[2])
}

func TestReduceTrafficSourcesTopN(t *testing.T) {
	var sessions []analytics.Session
	for i := 0; i < topSourcesLimit+5; i++ {
		sessions = append(sessions, analytics.Session{Campaign: string(rune('a' + i))})
	}

	sources := reduceTrafficSources(sessions)
	assert.Len(t, sources, topSourcesLimit)
}

func TestReferrerDomain(t *testing.T) {
	tests := []struct {
		referrer string
		want     string
	}{
		{"https://www.google.com/search?q=x", "google.com"},
		{"http://example.com:8080/path", "example.com"},
		{"twitter.com/user", "twitter.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, referrerDomain(tt.referrer), tt.referrer)
	}
}

func TestReduceTopPages(t *testing.T) {
	sessions := []analytics.Session{
		{
			IsBounce: true,
			Pages: []analytics.PageVisit{
				{Path: "/home", Duration: 10},
			},
		},
		{
			Pages: []analytics.PageVisit{
				{Path: "/home", Duration: 20},
				{Path: "/home", Duration: 30}, // revisit within the session
				{Path: "/pricing", Duration: 40},
			},
		},
	}

	pages := reduceTopPages(sessions)
	require.Len(t, pages, 2)

	home := pages[0]
	assert.Equal(t, "/home", home.Path)
	assert.Equal(t, 3, home.Views)
	// Two sessions visited /home, one of them bounced.
	assert.Equal(t, float64(50), home.BounceRate)
	assert.Equal(t, float64(20), home.AvgDuration)

	pricing := pages[1]
	assert.Equal(t, "/pricing", pricing.Path)
	assert.Equal(t, 1, pricing.Views)
	assert.Equal(t, float64(0), pricing.BounceRate)
}

func TestCountByIgnoresEmptyKeys(t *testing.T) {
	sessions := []analytics.Session{
		{Device: "mobile", Browser: "chrome", Country: "DE"},
		{Device: "mobile", Browser: "firefox"},
		{Device: "", Browser: ""},
	}

	assert.Equal(t, map[string]int{"mobile": 2}, reduceDevices(sessions))
	assert.Equal(t, map[string]int{"chrome": 1, "firefox": 1}, reduceBrowsers(sessions))

	countries := reduceCountries(sessions)
	require.Len(t, countries, 1)
	assert.Equal(t, analytics.CountryMetrics{Country: "DE", Sessions: 1}, countries[0])
}

func TestReduceJourneys(t *testing.T) {
	firstSeen := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	convertedAt := firstSeen.AddDate(0, 0, 3)

	sessions := []analytics.Session{
		{UserID: "u1", Duration: 100, PageViews: 4},
		{UserID: "u1", Duration: 200, PageViews: 6, Converted: true, UserFirstSeen: firstSeen, ConvertedAt: &convertedAt},
		{UserID: "u2", Duration: 50, PageViews: 2},
		{UserID: "", Duration: 999, PageViews: 99}, // anonymous, excluded
	}

	journeys := reduceJourneys(sessions)
	assert.Equal(t, 1.5, journeys.AvgSessionsPerJourney)
	assert.Equal(t, float64(175), journeys.AvgTimePerJourney)
	assert.Equal(t, float64(6), journeys.AvgPageViewsPerJourney)
	assert.Equal(t, float64(50), journeys.ConversionRate)
	assert.Equal(t, float64(3), journeys.AvgDaysToConversion)
}

func TestReduceJourneysEmpty(t *testing.T) {
	journeys := reduceJourneys(nil)
	assert.Equal(t, float64(0), journeys.ConversionRate)
	assert.Equal(t, float64(0), journeys.AvgDaysToConversion)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, round2(100.0/3.0))
	assert.Equal(t, 66.67, round2(200.0/3.0))
	assert.Equal(t, float64(0), safePct(5, 0))
	assert.Equal(t, float64(0), safeAvg(5, 0))
}
