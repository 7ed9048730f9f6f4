package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ignite/metrics-hub/internal/domain"
)

// FilterByPlatform keeps records of platform p. An empty platform keeps all.
func FilterByPlatform(records []domain.RevenueRecord, p domain.Platform) []domain.RevenueRecord {
	if p == "" {
		return append([]domain.RevenueRecord(nil), records...)
	}
	var out []domain.RevenueRecord
	for _, r := range records {
		if r.Platform == p {
			out = append(out, r)
		}
	}
	return out
}

// FilterByDateRange keeps records whose date lies in [start, end], both
// inclusive. A range with start after end selects nothing.
func FilterByDateRange(records []domain.RevenueRecord, start, end string) []domain.RevenueRecord {
	rng := domain.DateRange{Start: start, End: end}
	var out []domain.RevenueRecord
	if rng.IsEmpty() {
		return out
	}
	for _, r := range records {
		if rng.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// FilterEntriesByDateRange is FilterByDateRange for metric entries.
func FilterEntriesByDateRange(entries []domain.PlatformMetricEntry, rng domain.DateRange) []domain.PlatformMetricEntry {
	var out []domain.PlatformMetricEntry
	if rng.IsEmpty() {
		return out
	}
	for _, e := range entries {
		if rng.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// SumRevenue adds revenue exactly in decimal and returns the float total.
func SumRevenue(records []domain.RevenueRecord) float64 {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(decimal.NewFromFloat(r.Revenue))
	}
	return total.InexactFloat64()
}

// SortByDate orders records by date, then platform, then id.
func SortByDate(records []domain.RevenueRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.ID < b.ID
	})
}
