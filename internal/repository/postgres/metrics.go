package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/service/overview"
)

const (
	entryColumns     = 5
	entryUpsertChunk = 1000
)

// MetricsRepo reads social accounts and stores their synced metric entries.
type MetricsRepo struct{ db *sql.DB }

// NewMetricsRepo creates a Postgres-backed metrics repository.
func NewMetricsRepo(db *sql.DB) *MetricsRepo { return &MetricsRepo{db: db} }

func (r *MetricsRepo) ListAccounts(ctx context.Context, f overview.AccountFilter) ([]domain.SocialAccount, error) {
	q := `
		SELECT id, platform, external_id, name, username, followers_count, is_active, created_at
		FROM social_accounts
		WHERE 1=1`
	args := []interface{}{}
	if f.ActiveOnly {
		q += " AND is_active = true"
	}
	if len(f.Platforms) > 0 {
		q += " AND platform = ANY($1)"
		args = append(args, pq.Array(platformNames(f.Platforms)))
	}
	q += " ORDER BY platform, name, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.SocialAccount
	for rows.Next() {
		var a domain.SocialAccount
		if err := rows.Scan(&a.ID, &a.Platform, &a.ExternalID, &a.Name, &a.Username,
			&a.FollowersCount, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActiveAccounts lists active accounts on platforms for a sync round.
func (r *MetricsRepo) ActiveAccounts(ctx context.Context, platforms []domain.Platform) ([]domain.SocialAccount, error) {
	return r.ListAccounts(ctx, overview.AccountFilter{Platforms: platforms, ActiveOnly: true})
}

func (r *MetricsRepo) QueryMetricEntries(ctx context.Context, accountIDs []string, rng domain.DateRange) ([]domain.PlatformMetricEntry, error) {
	if len(accountIDs) == 0 || rng.IsEmpty() {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, platform, metric_type, value, to_char(date, 'YYYY-MM-DD')
		FROM platform_metrics
		WHERE account_id = ANY($1) AND date BETWEEN $2 AND $3
		ORDER BY account_id, date, metric_type
	`, pq.Array(accountIDs), rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("query metric entries: %w", err)
	}
	defer rows.Close()

	var out []domain.PlatformMetricEntry
	for rows.Next() {
		var e domain.PlatformMetricEntry
		if err := rows.Scan(&e.AccountID, &e.Platform, &e.MetricType, &e.Value, &e.Date); err != nil {
			return nil, fmt.Errorf("scan metric entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertMetricEntries writes entries keyed by (account, metric type, date).
// Duplicates within the call keep the last value.
func (r *MetricsRepo) UpsertMetricEntries(ctx context.Context, entries []domain.PlatformMetricEntry) error {
	entries = dedupeEntries(entries)
	for start := 0; start < len(entries); start += entryUpsertChunk {
		end := start + entryUpsertChunk
		if end > len(entries) {
			end = len(entries)
		}
		if err := r.upsertChunk(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *MetricsRepo) upsertChunk(ctx context.Context, entries []domain.PlatformMetricEntry) error {
	var b strings.Builder
	b.WriteString(`INSERT INTO platform_metrics (account_id, platform, metric_type, value, date) VALUES `)
	args := make([]interface{}, 0, len(entries)*entryColumns)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders(i*entryColumns+1, entryColumns))
		args = append(args, e.AccountID, e.Platform, e.MetricType, e.Value, e.Date)
	}
	b.WriteString(` ON CONFLICT (account_id, metric_type, date)
		DO UPDATE SET value = EXCLUDED.value, platform = EXCLUDED.platform`)

	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("upsert metric entries: %w", err)
	}
	return nil
}

func dedupeEntries(entries []domain.PlatformMetricEntry) []domain.PlatformMetricEntry {
	type key struct{ account, metric, date string }
	pos := make(map[key]int, len(entries))
	out := make([]domain.PlatformMetricEntry, 0, len(entries))
	for _, e := range entries {
		k := key{e.AccountID, e.MetricType, e.Date}
		if i, ok := pos[k]; ok {
			out[i] = e
			continue
		}
		pos[k] = len(out)
		out = append(out, e)
	}
	return out
}
