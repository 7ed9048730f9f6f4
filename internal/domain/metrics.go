package domain

import "time"

// Metric types reported by platform syncs. Platforms may report any subset.
const (
	MetricFollowers      = "followers"
	MetricViews          = "views"
	MetricReach          = "reach"
	MetricImpressions    = "impressions"
	MetricLikes          = "likes"
	MetricComments       = "comments"
	MetricShares         = "shares"
	MetricSaves          = "saves"
	MetricClicks         = "clicks"
	MetricEngagementRate = "engagement_rate"
	MetricRevenue        = "revenue"
)

// SocialAccount is a connected account on one platform.
type SocialAccount struct {
	ID             string    `json:"id" db:"id"`
	Platform       Platform  `json:"platform" db:"platform"`
	ExternalID     string    `json:"account_id" db:"external_id"`
	Name           string    `json:"account_name" db:"name"`
	Username       string    `json:"account_username,omitempty" db:"username"`
	FollowersCount int64     `json:"followers_count" db:"followers_count"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PlatformMetricEntry is one metric value reported for an account on a day.
type PlatformMetricEntry struct {
	AccountID  string   `json:"account_id" db:"account_id"`
	Platform   Platform `json:"platform" db:"platform"`
	MetricType string   `json:"metric_type" db:"metric_type"`
	Value      float64  `json:"value" db:"value"`
	Date       string   `json:"date" db:"date"` // YYYY-MM-DD
}

// DateRange is an inclusive range of ISO calendar dates.
type DateRange struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

// Contains reports whether date (YYYY-MM-DD) falls inside the range.
// Lexicographic comparison is valid because all dates are zero padded.
func (r DateRange) Contains(date string) bool {
	return r.Start <= date && date <= r.End
}

// IsEmpty reports whether the range selects nothing.
func (r DateRange) IsEmpty() bool {
	return r.Start > r.End
}

// LastNDays returns the range of n days ending on the day of now, both ends
// included. n below 1 selects just that day.
func LastNDays(now time.Time, n int) DateRange {
	if n < 1 {
		n = 1
	}
	end := now.UTC().Format("2006-01-02")
	start := now.UTC().AddDate(0, 0, -(n - 1)).Format("2006-01-02")
	return DateRange{Start: start, End: end}
}

// PlatformOverview is the per-platform slice of an overview.
type PlatformOverview struct {
	Accounts       int     `json:"accounts"`
	Followers      float64 `json:"followers"`
	Views          float64 `json:"views"`
	Reach          float64 `json:"reach"`
	Engagement     float64 `json:"engagement"`
	EngagementRate float64 `json:"engagement_rate"`
	Revenue        float64 `json:"revenue"`
}

// OverviewStats is the date-range-scoped cross-platform roll-up.
type OverviewStats struct {
	Range           DateRange                     `json:"range"`
	TotalFollowers  float64                       `json:"total_followers"`
	TotalViews      float64                       `json:"total_views"`
	TotalReach      float64                       `json:"total_reach"`
	TotalEngagement float64                       `json:"total_engagement"`
	TotalLikes      float64                       `json:"total_likes"`
	TotalComments   float64                       `json:"total_comments"`
	TotalShares     float64                       `json:"total_shares"`
	TotalRevenue    float64                       `json:"total_revenue"`
	MetricTotals    map[string]float64            `json:"metric_totals"`
	Platforms       map[Platform]PlatformOverview `json:"platforms"`
}
