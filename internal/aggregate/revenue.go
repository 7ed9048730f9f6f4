package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ignite/metrics-hub/internal/domain"
)

// SummarizeRevenue totals the records that fall inside rng. Average CTR is
// clicks over impressions as a percentage, zero without impressions. The
// daily series is ordered by date.
func SummarizeRevenue(records []domain.RevenueRecord, rng domain.DateRange) domain.RevenueSummary {
	in := FilterByDateRange(records, rng.Start, rng.End)
	SortByDate(in)

	type platformAcc struct {
		revenue             decimal.Decimal
		impressions, clicks int64
		records             int
	}
	platforms := make(map[domain.Platform]*platformAcc)
	var days []string
	daily := make(map[string]map[domain.Platform]decimal.Decimal)

	total := decimal.Zero
	var impressions, clicks int64
	for _, r := range in {
		amount := decimal.NewFromFloat(r.Revenue)
		total = total.Add(amount)

		pa, ok := platforms[r.Platform]
		if !ok {
			pa = &platformAcc{}
			platforms[r.Platform] = pa
		}
		pa.revenue = pa.revenue.Add(amount)
		pa.records++
		if r.Impressions != nil {
			pa.impressions += *r.Impressions
			impressions += *r.Impressions
		}
		if r.Clicks != nil {
			pa.clicks += *r.Clicks
			clicks += *r.Clicks
		}

		day, ok := daily[r.Date]
		if !ok {
			day = make(map[domain.Platform]decimal.Decimal)
			daily[r.Date] = day
			days = append(days, r.Date)
		}
		day[r.Platform] = day[r.Platform].Add(amount)
	}

	summary := domain.RevenueSummary{
		Range:            rng,
		TotalRevenue:     total.InexactFloat64(),
		TotalImpressions: impressions,
		TotalClicks:      clicks,
		RecordCount:      len(in),
		Platforms:        make(map[domain.Platform]domain.PlatformRevenue, len(platforms)),
		Daily:            make([]domain.DailyRevenue, 0, len(days)),
	}
	if impressions > 0 {
		summary.AverageCTR = decimal.NewFromInt(clicks).
			Div(decimal.NewFromInt(impressions)).
			Mul(hundred).Round(4).InexactFloat64()
	}
	for p, pa := range platforms {
		summary.Platforms[p] = domain.PlatformRevenue{
			Revenue:     pa.revenue.InexactFloat64(),
			Impressions: pa.impressions,
			Clicks:      pa.clicks,
			Records:     pa.records,
		}
	}

	// days is already in date order because in is sorted.
	for _, d := range days {
		byPlatform := daily[d]
		dr := domain.DailyRevenue{Date: d, Platforms: make(map[domain.Platform]float64, len(byPlatform))}
		dayTotal := decimal.Zero
		for _, p := range sortedRevenuePlatforms(byPlatform) {
			dayTotal = dayTotal.Add(byPlatform[p])
			dr.Platforms[p] = byPlatform[p].InexactFloat64()
		}
		dr.Total = dayTotal.InexactFloat64()
		summary.Daily = append(summary.Daily, dr)
	}
	return summary
}

func sortedRevenuePlatforms(m map[domain.Platform]decimal.Decimal) []domain.Platform {
	keys := make([]domain.Platform, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
