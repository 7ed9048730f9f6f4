package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ignite/metrics-hub/internal/domain"
)

// EngagementMode selects how engagement rates are derived.
type EngagementMode string

const (
	// EngagementRatioOfSums divides summed interactions by summed reach
	// (views when no reach is reported).
	EngagementRatioOfSums EngagementMode = "ratio_of_sums"
	// EngagementMeanOfRates averages reported engagement_rate entries per
	// account, then averages accounts per platform.
	EngagementMeanOfRates EngagementMode = "mean_of_rates"
)

// ParseEngagementMode accepts the config spelling of a mode. Empty selects
// EngagementRatioOfSums.
func ParseEngagementMode(s string) (EngagementMode, error) {
	switch m := EngagementMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return EngagementRatioOfSums, nil
	case EngagementRatioOfSums, EngagementMeanOfRates:
		return m, nil
	}
	return "", fmt.Errorf("unknown engagement mode %q", s)
}

// nonAdditive metrics are snapshots or ratios and are not summed into
// per-metric totals.
var nonAdditive = map[string]bool{
	domain.MetricFollowers:      true,
	domain.MetricEngagementRate: true,
}

var hundred = decimal.NewFromInt(100)

// Aggregator computes overview statistics. It is stateless apart from its mode.
type Aggregator struct {
	mode EngagementMode
}

func New(mode EngagementMode) *Aggregator {
	if mode != EngagementMeanOfRates {
		mode = EngagementRatioOfSums
	}
	return &Aggregator{mode: mode}
}

func (a *Aggregator) Mode() EngagementMode { return a.mode }

type accountFigures struct {
	followers  decimal.Decimal
	views      decimal.Decimal
	reach      decimal.Decimal
	engagement decimal.Decimal
	rate       decimal.Decimal
	metrics    map[string]decimal.Decimal
}

type platformFigures struct {
	accounts   int
	followers  decimal.Decimal
	views      decimal.Decimal
	reach      decimal.Decimal
	engagement decimal.Decimal
	rateSum    decimal.Decimal
	revenue    decimal.Decimal
}

// ComputeOverview rolls accounts, their metric entries and revenue records up
// for rng. Accounts missing from entriesByAccount contribute zero metrics.
// Revenue is attributed by the record's platform, independent of accounts.
// Global totals are the sums of the per-platform figures.
func (a *Aggregator) ComputeOverview(
	accounts []domain.SocialAccount,
	entriesByAccount map[string][]domain.PlatformMetricEntry,
	revenue []domain.RevenueRecord,
	rng domain.DateRange,
) domain.OverviewStats {
	sorted := append([]domain.SocialAccount(nil), accounts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	platforms := make(map[domain.Platform]*platformFigures)
	figuresFor := func(p domain.Platform) *platformFigures {
		pf, ok := platforms[p]
		if !ok {
			pf = &platformFigures{}
			platforms[p] = pf
		}
		return pf
	}

	metricTotals := make(map[string]decimal.Decimal)
	for _, acc := range sorted {
		af := a.account(acc, FilterEntriesByDateRange(entriesByAccount[acc.ID], rng))

		pf := figuresFor(acc.Platform)
		pf.accounts++
		pf.followers = pf.followers.Add(af.followers)
		pf.views = pf.views.Add(af.views)
		pf.reach = pf.reach.Add(af.reach)
		pf.engagement = pf.engagement.Add(af.engagement)
		pf.rateSum = pf.rateSum.Add(af.rate)

		for _, k := range sortedKeys(af.metrics) {
			metricTotals[k] = metricTotals[k].Add(af.metrics[k])
		}
	}

	for _, r := range FilterByDateRange(revenue, rng.Start, rng.End) {
		pf := figuresFor(r.Platform)
		pf.revenue = pf.revenue.Add(decimal.NewFromFloat(r.Revenue))
	}

	stats := domain.OverviewStats{
		Range:        rng,
		MetricTotals: make(map[string]float64, len(metricTotals)),
		Platforms:    make(map[domain.Platform]domain.PlatformOverview, len(platforms)),
	}

	var followers, views, reach, engagement, rev decimal.Decimal
	for _, p := range sortedPlatforms(platforms) {
		pf := platforms[p]
		stats.Platforms[p] = domain.PlatformOverview{
			Accounts:       pf.accounts,
			Followers:      pf.followers.InexactFloat64(),
			Views:          pf.views.InexactFloat64(),
			Reach:          pf.reach.InexactFloat64(),
			Engagement:     pf.engagement.InexactFloat64(),
			EngagementRate: a.platformRate(pf).InexactFloat64(),
			Revenue:        pf.revenue.InexactFloat64(),
		}
		followers = followers.Add(pf.followers)
		views = views.Add(pf.views)
		reach = reach.Add(pf.reach)
		engagement = engagement.Add(pf.engagement)
		rev = rev.Add(pf.revenue)
	}

	stats.TotalFollowers = followers.InexactFloat64()
	stats.TotalViews = views.InexactFloat64()
	stats.TotalReach = reach.InexactFloat64()
	stats.TotalEngagement = engagement.InexactFloat64()
	stats.TotalRevenue = rev.InexactFloat64()
	stats.TotalLikes = metricTotals[domain.MetricLikes].InexactFloat64()
	stats.TotalComments = metricTotals[domain.MetricComments].InexactFloat64()
	stats.TotalShares = metricTotals[domain.MetricShares].InexactFloat64()
	for k, v := range metricTotals {
		stats.MetricTotals[k] = v.InexactFloat64()
	}
	return stats
}

// account sums one account's in-range entries. Followers is the latest
// reported snapshot, falling back to the count stored on the account.
func (a *Aggregator) account(acc domain.SocialAccount, entries []domain.PlatformMetricEntry) accountFigures {
	af := accountFigures{
		followers: decimal.NewFromInt(acc.FollowersCount),
		metrics:   make(map[string]decimal.Decimal),
	}

	latestFollowers := ""
	var rateSum decimal.Decimal
	rateCount := 0
	for _, e := range entries {
		v := decimal.NewFromFloat(e.Value)
		switch e.MetricType {
		case domain.MetricFollowers:
			if e.Date >= latestFollowers {
				latestFollowers = e.Date
				af.followers = v
			}
		case domain.MetricEngagementRate:
			rateSum = rateSum.Add(v)
			rateCount++
		}
		if !nonAdditive[e.MetricType] {
			af.metrics[e.MetricType] = af.metrics[e.MetricType].Add(v)
		}
	}

	af.views = af.metrics[domain.MetricViews]
	af.reach = af.metrics[domain.MetricReach]
	af.engagement = af.metrics[domain.MetricLikes].
		Add(af.metrics[domain.MetricComments]).
		Add(af.metrics[domain.MetricShares])

	switch a.mode {
	case EngagementMeanOfRates:
		if rateCount > 0 {
			af.rate = rateSum.Div(decimal.NewFromInt(int64(rateCount)))
		}
	default:
		af.rate = ratio(af.engagement, af.reach, af.views)
	}
	return af
}

func (a *Aggregator) platformRate(pf *platformFigures) decimal.Decimal {
	if a.mode == EngagementMeanOfRates {
		if pf.accounts == 0 {
			return decimal.Zero
		}
		return pf.rateSum.Div(decimal.NewFromInt(int64(pf.accounts))).Round(4)
	}
	return ratio(pf.engagement, pf.reach, pf.views)
}

// ratio returns engagement as a percentage of reach, or of views when reach
// is zero. No denominator yields zero.
func ratio(engagement, reach, views decimal.Decimal) decimal.Decimal {
	denom := reach
	if denom.IsZero() {
		denom = views
	}
	if denom.IsZero() {
		return decimal.Zero
	}
	return engagement.Div(denom).Mul(hundred).Round(4)
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedPlatforms(m map[domain.Platform]*platformFigures) []domain.Platform {
	keys := make([]domain.Platform, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
