package overview

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/metrics-hub/internal/aggregate"
	"github.com/ignite/metrics-hub/internal/datanorm"
	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/metrics"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
)

const isoDate = "2006-01-02"

// Options tunes the overview service.
type Options struct {
	CacheTTL         time.Duration
	DefaultRangeDays int
}

// Service computes overviews and revenue views. It is safe for concurrent use.
type Service struct {
	repo  Repository
	agg   *aggregate.Aggregator
	cache *cache
	opts  Options
	now   func() time.Time
}

// NewService creates an overview service. Caching is off until WithCache.
func NewService(repo Repository, agg *aggregate.Aggregator, opts Options) *Service {
	if opts.DefaultRangeDays <= 0 {
		opts.DefaultRangeDays = 30
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Service{repo: repo, agg: agg, opts: opts, now: time.Now}
}

// WithCache enables the Redis overview cache. A nil client leaves it off.
func (s *Service) WithCache(rdb *redis.Client) *Service {
	if rdb != nil {
		s.cache = &cache{rdb: rdb, ttl: s.opts.CacheTTL}
	}
	return s
}

// Query selects the accounts and dates an overview covers. Empty Platforms
// means every platform.
type Query struct {
	Range     domain.DateRange
	Platforms []domain.Platform
}

// ResolveRange validates optional YYYY-MM-DD bounds. A missing end is today,
// a missing start makes the range DefaultRangeDays long, end included. A start after the end
// is allowed and selects nothing.
func (s *Service) ResolveRange(start, end string) (domain.DateRange, error) {
	if start == "" && end == "" {
		return domain.LastNDays(s.now(), s.opts.DefaultRangeDays), nil
	}
	var endDay time.Time
	if end == "" {
		endDay = s.now().UTC()
	} else {
		t, err := time.Parse(isoDate, end)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
		}
		endDay = t
	}
	if start == "" {
		start = domain.LastNDays(endDay, s.opts.DefaultRangeDays).Start
	} else if _, err := time.Parse(isoDate, start); err != nil {
		return domain.DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	return domain.DateRange{Start: start, End: endDay.Format(isoDate)}, nil
}

// Overview returns the roll-up for q, from cache when possible. Cache
// failures are logged and the overview is computed from storage.
func (s *Service) Overview(ctx context.Context, q Query) (*domain.OverviewStats, error) {
	var key string
	if s.cache != nil {
		if v, err := s.cache.version(ctx); err != nil {
			logger.Warn("overview cache unavailable", "error", err)
		} else {
			key = s.cache.key(v, string(s.agg.Mode()), q)
			stats, err := s.cache.get(ctx, key)
			if err != nil {
				logger.Warn("overview cache read failed", "key", key, "error", err)
			} else if stats != nil {
				metrics.OverviewCacheHits.Inc()
				return stats, nil
			}
		}
	}
	metrics.OverviewCacheMisses.Inc()

	stats, err := s.compute(ctx, q)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if err := s.cache.set(ctx, key, stats); err != nil {
			logger.Warn("overview cache write failed", "key", key, "error", err)
		}
	}
	return stats, nil
}

func (s *Service) compute(ctx context.Context, q Query) (*domain.OverviewStats, error) {
	accounts, err := s.repo.ListAccounts(ctx, AccountFilter{Platforms: q.Platforms, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	entriesByAccount := make(map[string][]domain.PlatformMetricEntry, len(accounts))
	if len(accounts) > 0 && !q.Range.IsEmpty() {
		ids := make([]string, len(accounts))
		for i, a := range accounts {
			ids[i] = a.ID
		}
		entries, err := s.repo.QueryMetricEntries(ctx, ids, q.Range)
		if err != nil {
			return nil, fmt.Errorf("query metric entries: %w", err)
		}
		for _, e := range entries {
			entriesByAccount[e.AccountID] = append(entriesByAccount[e.AccountID], e)
		}
	}

	revenue, err := s.repo.ListRevenue(ctx, RevenueFilter{Platforms: q.Platforms, Range: q.Range})
	if err != nil {
		return nil, fmt.Errorf("list revenue: %w", err)
	}

	stats := s.agg.ComputeOverview(accounts, entriesByAccount, revenue, q.Range)
	return &stats, nil
}

// Invalidate drops every cached overview.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.invalidate(ctx)
}

// Accounts lists active accounts on the given platforms.
func (s *Service) Accounts(ctx context.Context, platforms []domain.Platform) ([]domain.SocialAccount, error) {
	return s.repo.ListAccounts(ctx, AccountFilter{Platforms: platforms, ActiveOnly: true})
}

// Revenue lists the records of f ordered by date.
func (s *Service) Revenue(ctx context.Context, f RevenueFilter) ([]domain.RevenueRecord, error) {
	records, err := s.repo.ListRevenue(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list revenue: %w", err)
	}
	records = aggregate.FilterByDateRange(records, f.Range.Start, f.Range.End)
	aggregate.SortByDate(records)
	return records, nil
}

// Summary totals the records of f.
func (s *Service) Summary(ctx context.Context, f RevenueFilter) (*domain.RevenueSummary, error) {
	records, err := s.Revenue(ctx, f)
	if err != nil {
		return nil, err
	}
	summary := aggregate.SummarizeRevenue(records, f.Range)
	return &summary, nil
}

// Export renders the records of f as the flat revenue CSV and names the file.
func (s *Service) Export(ctx context.Context, f RevenueFilter) (string, []byte, error) {
	records, err := s.Revenue(ctx, f)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	if err := datanorm.WriteCSV(&buf, records); err != nil {
		return "", nil, fmt.Errorf("write export: %w", err)
	}
	return datanorm.ExportFileName(f.Range), buf.Bytes(), nil
}
