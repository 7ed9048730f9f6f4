package overview

import (
	"context"

	"github.com/ignite/metrics-hub/internal/domain"
)

// Repository defines the read contract the overview needs.
type Repository interface {
	// ListAccounts returns accounts on the given platforms (all when empty).
	ListAccounts(ctx context.Context, filter AccountFilter) ([]domain.SocialAccount, error)

	// QueryMetricEntries returns entries of the given accounts dated inside rng.
	QueryMetricEntries(ctx context.Context, accountIDs []string, rng domain.DateRange) ([]domain.PlatformMetricEntry, error)

	// ListRevenue returns revenue records matching the filter.
	ListRevenue(ctx context.Context, filter RevenueFilter) ([]domain.RevenueRecord, error)
}

// AccountFilter selects social accounts.
type AccountFilter struct {
	Platforms  []domain.Platform
	ActiveOnly bool
}

// RevenueFilter selects revenue records. Empty Platforms means every platform.
type RevenueFilter struct {
	Platforms []domain.Platform
	Range     domain.DateRange
}
