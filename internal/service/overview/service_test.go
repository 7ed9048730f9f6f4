package overview

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/metrics-hub/internal/aggregate"
	"github.com/ignite/metrics-hub/internal/domain"
)

var jan = domain.DateRange{Start: "2024-01-01", End: "2024-01-31"}

// memRepo is an in-memory repository for testing.
type memRepo struct {
	mu       sync.Mutex
	accounts []domain.SocialAccount
	entries  []domain.PlatformMetricEntry
	revenue  []domain.RevenueRecord
	queries  int
}

func hasPlatform(ps []domain.Platform, p domain.Platform) bool {
	if len(ps) == 0 {
		return true
	}
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}

func (m *memRepo) ListAccounts(_ context.Context, f AccountFilter) ([]domain.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SocialAccount
	for _, a := range m.accounts {
		if f.ActiveOnly && !a.IsActive {
			continue
		}
		if hasPlatform(f.Platforms, a.Platform) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) QueryMetricEntries(_ context.Context, ids []string, rng domain.DateRange) ([]domain.PlatformMetricEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.PlatformMetricEntry
	for _, e := range m.entries {
		if want[e.AccountID] && rng.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) ListRevenue(_ context.Context, f RevenueFilter) ([]domain.RevenueRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RevenueRecord
	for _, r := range m.revenue {
		if hasPlatform(f.Platforms, r.Platform) && f.Range.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

func e(account string, p domain.Platform, metric string, v float64, date string) domain.PlatformMetricEntry {
	return domain.PlatformMetricEntry{AccountID: account, Platform: p, MetricType: metric, Value: v, Date: date}
}

func fixtureRepo() *memRepo {
	return &memRepo{
		accounts: []domain.SocialAccount{
			{ID: "fb-1", Platform: domain.PlatformFacebook, FollowersCount: 900, IsActive: true},
			{ID: "ig-1", Platform: domain.PlatformInstagram, FollowersCount: 5000, IsActive: true},
			{ID: "tw-1", Platform: domain.PlatformTwitter, FollowersCount: 77, IsActive: false},
		},
		entries: []domain.PlatformMetricEntry{
			e("fb-1", domain.PlatformFacebook, domain.MetricViews, 400, "2024-01-10"),
			e("fb-1", domain.PlatformFacebook, domain.MetricReach, 200, "2024-01-10"),
			e("fb-1", domain.PlatformFacebook, domain.MetricLikes, 10, "2024-01-10"),
			e("fb-1", domain.PlatformFacebook, domain.MetricComments, 6, "2024-01-11"),
			e("fb-1", domain.PlatformFacebook, domain.MetricShares, 4, "2024-01-12"),
			e("fb-1", domain.PlatformFacebook, domain.MetricViews, 9999, "2024-02-01"),
			e("ig-1", domain.PlatformInstagram, domain.MetricViews, 300, "2024-01-05"),
			e("ig-1", domain.PlatformInstagram, domain.MetricLikes, 30, "2024-01-05"),
			e("tw-1", domain.PlatformTwitter, domain.MetricViews, 50, "2024-01-05"),
		},
		revenue: []domain.RevenueRecord{
			{ID: "r2", Platform: domain.PlatformFacebook, Date: "2024-01-31", Revenue: 20.50},
			{ID: "r1", Platform: domain.PlatformFacebook, Date: "2024-01-01", Revenue: 10.00},
			{ID: "r3", Platform: domain.PlatformAdSense, Date: "2024-01-15", Revenue: 0.25, Impressions: ptr(int64(100)), Clicks: ptr(int64(5))},
			{ID: "r4", Platform: domain.PlatformFacebook, Date: "2023-12-31", Revenue: 1000},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func newService(repo Repository) *Service {
	svc := NewService(repo, aggregate.New(aggregate.EngagementRatioOfSums), Options{DefaultRangeDays: 30})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC) }
	return svc
}

func TestOverview(t *testing.T) {
	svc := newService(fixtureRepo())

	stats, err := svc.Overview(context.Background(), Query{Range: jan})
	require.NoError(t, err)

	assert.Equal(t, jan, stats.Range)
	assert.Equal(t, 5900.0, stats.TotalFollowers)
	assert.Equal(t, 700.0, stats.TotalViews, "inactive accounts and out of range entries are excluded")
	assert.Equal(t, 50.0, stats.TotalEngagement)
	assert.Equal(t, 30.75, stats.TotalRevenue)
	assert.Equal(t, 10.0, stats.Platforms[domain.PlatformFacebook].EngagementRate)
	assert.Equal(t, 0.25, stats.Platforms[domain.PlatformAdSense].Revenue)
	assert.NotContains(t, stats.Platforms, domain.PlatformTwitter)
}

func TestOverviewPlatformFilter(t *testing.T) {
	svc := newService(fixtureRepo())

	stats, err := svc.Overview(context.Background(), Query{Range: jan, Platforms: []domain.Platform{domain.PlatformFacebook}})
	require.NoError(t, err)

	assert.Equal(t, 900.0, stats.TotalFollowers)
	assert.Equal(t, 400.0, stats.TotalViews)
	assert.Equal(t, 30.5, stats.TotalRevenue)
	assert.Len(t, stats.Platforms, 1)
}

func TestOverviewEmptyRange(t *testing.T) {
	repo := fixtureRepo()
	svc := newService(repo)

	stats, err := svc.Overview(context.Background(), Query{Range: domain.DateRange{Start: "2024-02-01", End: "2024-01-01"}})
	require.NoError(t, err)
	assert.Zero(t, stats.TotalViews)
	assert.Zero(t, stats.TotalRevenue)
	assert.Zero(t, repo.queryCount(), "an empty range never reaches storage for entries")
}

func TestOverviewCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	repo := fixtureRepo()
	svc := newService(repo).WithCache(rdb)
	ctx := context.Background()

	q := Query{Range: jan, Platforms: []domain.Platform{domain.PlatformInstagram, domain.PlatformFacebook}}
	first, err := svc.Overview(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.queryCount())

	// Platform order does not change the cache key.
	q.Platforms = []domain.Platform{domain.PlatformFacebook, domain.PlatformInstagram}
	second, err := svc.Overview(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.queryCount())
	assert.Equal(t, first, second)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Overview(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.queryCount())

	keys := mr.Keys()
	assert.Contains(t, keys, versionKey)
	for _, k := range keys {
		if k != versionKey {
			assert.Equal(t, 5*time.Minute, mr.TTL(k))
		}
	}
}

func TestOverviewCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	svc := newService(fixtureRepo()).WithCache(rdb)
	stats, err := svc.Overview(context.Background(), Query{Range: jan})
	require.NoError(t, err)
	assert.Equal(t, 700.0, stats.TotalViews)
}

func TestInvalidateWithoutCache(t *testing.T) {
	assert.NoError(t, newService(fixtureRepo()).Invalidate(context.Background()))
}

func TestResolveRange(t *testing.T) {
	svc := newService(&memRepo{})

	tests := []struct {
		name       string
		start, end string
		want       domain.DateRange
		wantErr    bool
	}{
		{name: "default", want: domain.DateRange{Start: "2024-02-15", End: "2024-03-15"}},
		{name: "explicit", start: "2024-01-01", end: "2024-01-31", want: jan},
		{name: "start only", start: "2024-03-01", want: domain.DateRange{Start: "2024-03-01", End: "2024-03-15"}},
		{name: "end only", end: "2024-01-31", want: domain.DateRange{Start: "2024-01-02", End: "2024-01-31"}},
		{name: "reversed is allowed", start: "2024-02-01", end: "2024-01-01", want: domain.DateRange{Start: "2024-02-01", End: "2024-01-01"}},
		{name: "bad start", start: "01/01/2024", end: "2024-01-31", wantErr: true},
		{name: "bad end", end: "2024-13-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ResolveRange(tt.start, tt.end)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRevenueSortedAndFiltered(t *testing.T) {
	svc := newService(fixtureRepo())

	records, err := svc.Revenue(context.Background(), RevenueFilter{Range: jan})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, "r3", records[1].ID)
	assert.Equal(t, "r2", records[2].ID)

	records, err = svc.Revenue(context.Background(), RevenueFilter{Range: jan, Platforms: []domain.Platform{domain.PlatformAdSense}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r3", records[0].ID)
}

func TestSummary(t *testing.T) {
	svc := newService(fixtureRepo())

	s, err := svc.Summary(context.Background(), RevenueFilter{Range: jan})
	require.NoError(t, err)
	assert.Equal(t, 30.75, s.TotalRevenue)
	assert.Equal(t, int64(100), s.TotalImpressions)
	assert.Equal(t, int64(5), s.TotalClicks)
	assert.Equal(t, 5.0, s.AverageCTR)
	assert.Equal(t, 3, s.RecordCount)
	assert.Len(t, s.Daily, 3)
	assert.Equal(t, 30.5, s.Platforms[domain.PlatformFacebook].Revenue)
}

func TestExport(t *testing.T) {
	svc := newService(fixtureRepo())

	name, body, err := svc.Export(context.Background(), RevenueFilter{Range: jan})
	require.NoError(t, err)
	assert.Equal(t, "revenus_2024-01-01_2024-01-31.csv", name)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Plateforme,Revenu,Impressions,Clics,CTR,CPM", lines[0])
	assert.Equal(t, "2024-01-01,facebook,10.00,,,,", lines[1])
	assert.Equal(t, "2024-01-15,adsense,0.25,100,5,,", lines[2])
}
