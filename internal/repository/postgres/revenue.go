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

const revenueColumns = 13

// RevenueRepo stores revenue records. Inserts are append-only, so
// concurrent imports never contend on the same rows.
type RevenueRepo struct{ db *sql.DB }

// NewRevenueRepo creates a Postgres-backed revenue repository.
func NewRevenueRepo(db *sql.DB) *RevenueRepo { return &RevenueRepo{db: db} }

func (r *RevenueRepo) InsertRevenueRecords(ctx context.Context, records []domain.RevenueRecord) error {
	if len(records) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO revenue_records
		(id, platform, date, revenue, currency, impressions, clicks, ctr, cpm,
		 estimated_earnings, source, batch_id, created_at)
		VALUES `)
	args := make([]interface{}, 0, len(records)*revenueColumns)
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders(i*revenueColumns+1, revenueColumns))
		args = append(args,
			rec.ID, rec.Platform, rec.Date, rec.Revenue, rec.Currency,
			rec.Impressions, rec.Clicks, rec.CTR, rec.CPM, rec.EstimatedEarnings,
			rec.Source, nullString(rec.BatchID), rec.CreatedAt,
		)
	}

	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert revenue records: %w", err)
	}
	return nil
}

func (r *RevenueRepo) ListRevenue(ctx context.Context, f overview.RevenueFilter) ([]domain.RevenueRecord, error) {
	if f.Range.IsEmpty() {
		return nil, nil
	}
	q := `
		SELECT id, platform, to_char(date, 'YYYY-MM-DD'), revenue, currency,
		       impressions, clicks, ctr, cpm, estimated_earnings,
		       source, COALESCE(batch_id, ''), created_at
		FROM revenue_records
		WHERE date BETWEEN $1 AND $2`
	args := []interface{}{f.Range.Start, f.Range.End}
	if len(f.Platforms) > 0 {
		q += " AND platform = ANY($3)"
		args = append(args, pq.Array(platformNames(f.Platforms)))
	}
	q += " ORDER BY date, platform, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list revenue: %w", err)
	}
	defer rows.Close()

	var out []domain.RevenueRecord
	for rows.Next() {
		var (
			rec                         domain.RevenueRecord
			impressions, clicks         sql.NullInt64
			ctr, cpm, estimatedEarnings sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Platform, &rec.Date, &rec.Revenue, &rec.Currency,
			&impressions, &clicks, &ctr, &cpm, &estimatedEarnings,
			&rec.Source, &rec.BatchID, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan revenue record: %w", err)
		}
		rec.Impressions = int64Ptr(impressions)
		rec.Clicks = int64Ptr(clicks)
		rec.CTR = float64Ptr(ctr)
		rec.CPM = float64Ptr(cpm)
		rec.EstimatedEarnings = float64Ptr(estimatedEarnings)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// placeholders renders "($start, ..., $start+n-1)".
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func platformNames(ps []domain.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func float64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
