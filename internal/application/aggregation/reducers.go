package aggregation

import (
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
)

const (
	topSourcesLimit   = 10
	topPagesLimit     = 20
	topCountriesLimit = 15
)

// directSource is the attribution bucket for sessions without a campaign
// or referrer.
const directSource = "Direct"

// round2 rounds to 2 decimal places. All percentages and averages in a
// window are reported at this precision.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// safePct returns num/den as a percentage, or 0 when den is zero. Rates
// never produce NaN or infinities.
func safePct(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return round2(num / den * 100)
}

// safeAvg returns num/den rounded, or 0 when den is zero.
func safeAvg(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return round2(num / den)
}

// userSet collects the distinct non-empty user IDs of a session slice.
func userSet(sessions []analytics.Session) map[string]struct{} {
	users := make(map[string]struct{})
	for _, s := range sessions {
		if s.UserID != "" {
			users[s.UserID] = struct{}{}
		}
	}
	return users
}

// reduceCore computes the headline counters. Returning visitors are the
// distinct users with at least one session in the prior period and at least
// one in the current period; each user counts once regardless of how many
// prior sessions they had.
func reduceCore(current, prior []analytics.Session) analytics.CoreMetrics {
	var (
		pageViews int
		wallets   int
		bounced   int
		converted int
		duration  float64
	)
	for _, s := range current {
		pageViews += s.PageViews
		duration += s.Duration
		if s.WalletConnected {
			wallets++
		}
		if s.IsBounce {
			bounced++
		}
		if s.Converted {
			converted++
		}
	}

	currentUsers := userSet(current)
	priorUsers := userSet(prior)

	returning := 0
	for user := range currentUsers {
		if _, ok := priorUsers[user]; ok {
			returning++
		}
	}

	total := float64(len(current))
	return analytics.CoreMetrics{
		SessionCount:       len(current),
		UniqueUsers:        len(currentUsers),
		PageViews:          pageViews,
		WalletConnections:  wallets,
		BounceRate:         safePct(float64(bounced), total),
		AvgSessionDuration: safeAvg(duration, total),
		ConversionRate:     safePct(float64(converted), total),
		NewVisitors:        len(currentUsers) - returning,
		ReturningVisitors:  returning,
	}
}

// reduceTrafficSources ranks attribution sources by visit count. Source is
// the campaign when present, else the referrer domain, else "Direct".
func reduceTrafficSources(sessions []analytics.Session) []analytics.TrafficSource {
	counts := make(map[string]int)
	for _, s := range sessions {
		counts[sessionSource(s)]++
	}

	sources := make([]analytics.TrafficSource, 0, len(counts))
	for source, visits := range counts {
		sources = append(sources, analytics.TrafficSource{Source: source, Visits: visits})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Visits != sources[j].Visits {
			return sources[i].Visits > sources[j].Visits
		}
		return sources[i].Source < sources[j].Source
	})

	if len(sources) > topSourcesLimit {
		sources = sources[:topSourcesLimit]
	}
	return sources
}

func sessionSource(s analytics.Session) string {
	if s.Campaign != "" {
		return s.Campaign
	}
	if domain := referrerDomain(s.Referrer); domain != "" {
		return domain
	}
	return directSource
}

// referrerDomain extracts the host of a referrer URL, tolerating bare
// hostnames and stripping a www. prefix.
func referrerDomain(referrer string) string {
	if referrer == "" {
		return ""
	}
	host := referrer
	if u, err := url.Parse(referrer); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// reduceTopPages ranks pages by view count with per-page bounce share and
// average view duration. Per-page bounce rate is the share of sessions that
// viewed the page and bounced.
func reduceTopPages(sessions []analytics.Session) []analytics.PageMetrics {
	type pageAccum struct {
		views    int
		duration float64
		sessions int
		bounced  int
	}
	pages := make(map[string]*pageAccum)

	for _, s := range sessions {
		seen := make(map[string]struct{}, len(s.Pages))
		for _, visit := range s.Pages {
			accum := pages[visit.Path]
			if accum == nil {
				accum = &pageAccum{}
				pages[visit.Path] = accum
			}
			accum.views++
			accum.duration += visit.Duration
			if _, dup := seen[visit.Path]; !dup {
				seen[visit.Path] = struct{}{}
				accum.sessions++
				if s.IsBounce {
					accum.bounced++
				}
			}
		}
	}

	result := make([]analytics.PageMetrics, 0, len(pages))
	for path, accum := range pages {
		result = append(result, analytics.PageMetrics{
			Path:        path,
			Views:       accum.views,
			BounceRate:  safePct(float64(accum.bounced), float64(accum.sessions)),
			AvgDuration: safeAvg(accum.duration, float64(accum.views)),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Views != result[j].Views {
			return result[i].Views > result[j].Views
		}
		return result[i].Path < result[j].Path
	})

	if len(result) > topPagesLimit {
		result = result[:topPagesLimit]
	}
	return result
}

// reduceDevices counts sessions per device class.
func reduceDevices(sessions []analytics.Session) map[string]int {
	return countBy(sessions, func(s analytics.Session) string { return s.Device })
}

// reduceBrowsers counts sessions per browser.
func reduceBrowsers(sessions []analytics.Session) map[string]int {
	return countBy(sessions, func(s analytics.Session) string { return s.Browser })
}

// reduceSegments counts sessions per ML-assigned user segment.
func reduceSegments(sessions []analytics.Session) map[string]int {
	return countBy(sessions, func(s analytics.Session) string { return s.Segment })
}

func countBy(sessions []analytics.Session, key func(analytics.Session) string) map[string]int {
	counts := make(map[string]int)
	for _, s := range sessions {
		if k := key(s); k != "" {
			counts[k]++
		}
	}
	return counts
}

// reduceCountries ranks countries by session count.
func reduceCountries(sessions []analytics.Session) []analytics.CountryMetrics {
	counts := countBy(sessions, func(s analytics.Session) string { return s.Country })

	result := make([]analytics.CountryMetrics, 0, len(counts))
	for country, n := range counts {
		result = append(result, analytics.CountryMetrics{Country: country, Sessions: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Sessions != result[j].Sessions {
			return result[i].Sessions > result[j].Sessions
		}
		return result[i].Country < result[j].Country
	})

	if len(result) > topCountriesLimit {
		result = result[:topCountriesLimit]
	}
	return result
}

// reduceJourneys summarizes per-visitor journeys. A journey is the set of
// sessions a distinct identified user had within the window; anonymous
// sessions carry no user ID and are excluded.
func reduceJourneys(sessions []analytics.Session) analytics.JourneyMetrics {
	type journey struct {
		sessions   int
		duration   float64
		pageViews  int
		converted  bool
		daysToConv *float64
	}
	journeys := make(map[string]*journey)

	for _, s := range sessions {
		if s.UserID == "" {
			continue
		}
		j := journeys[s.UserID]
		if j == nil {
			j = &journey{}
			journeys[s.UserID] = j
		}
		j.sessions++
		j.duration += s.Duration
		j.pageViews += s.PageViews
		if s.Converted {
			j.converted = true
			if s.ConvertedAt != nil && !s.UserFirstSeen.IsZero() {
				days := s.ConvertedAt.Sub(s.UserFirstSeen).Hours() / 24
				if days >= 0 && (j.daysToConv == nil || days < *j.daysToConv) {
					d := days
					j.daysToConv = &d
				}
			}
		}
	}

	var (
		totalSessions  int
		totalDuration  float64
		totalPageViews int
		converted      int
		convDays       float64
		convDaysCount  int
	)
	for _, j := range journeys {
		totalSessions += j.sessions
		totalDuration += j.duration
		totalPageViews += j.pageViews
		if j.converted {
			converted++
		}
		if j.daysToConv != nil {
			convDays += *j.daysToConv
			convDaysCount++
		}
	}

	n := float64(len(journeys))
	return analytics.JourneyMetrics{
		AvgSessionsPerJourney:  safeAvg(float64(totalSessions), n),
		AvgTimePerJourney:      safeAvg(totalDuration, n),
		AvgPageViewsPerJourney: safeAvg(float64(totalPageViews), n),
		ConversionRate:         safePct(float64(converted), n),
		AvgDaysToConversion:    safeAvg(convDays, float64(convDaysCount)),
	}
}
