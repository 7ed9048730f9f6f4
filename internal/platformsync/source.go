package platformsync

import (
	"context"

	"github.com/ignite/metrics-hub/internal/domain"
)

// Source produces metric entries for accounts of one platform. Metric types a
// platform does not report are simply absent.
type Source interface {
	Platform() domain.Platform
	FetchMetrics(ctx context.Context, account domain.SocialAccount, rng domain.DateRange) ([]domain.PlatformMetricEntry, error)
}

// Store is the storage contract of a sync round.
type Store interface {
	// ActiveAccounts lists active accounts on the given platforms.
	ActiveAccounts(ctx context.Context, platforms []domain.Platform) ([]domain.SocialAccount, error)

	// UpsertMetricEntries stores entries, replacing any previous value for
	// the same account, metric type and date.
	UpsertMetricEntries(ctx context.Context, entries []domain.PlatformMetricEntry) error
}

// Invalidator drops derived views that new entries make stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
