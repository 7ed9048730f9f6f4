package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/service/revenueimport"
)

// ImportBatchRepo persists import batches.
type ImportBatchRepo struct{ db *sql.DB }

// NewImportBatchRepo creates a Postgres-backed batch repository.
func NewImportBatchRepo(db *sql.DB) *ImportBatchRepo { return &ImportBatchRepo{db: db} }

const batchColumns = `id, platform, file_name, file_type, currency, row_count,
	imported_count, status, errors, created_at, completed_at`

func (r *ImportBatchRepo) InsertImportBatch(ctx context.Context, b *domain.ImportBatch) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, b.ID, b.Platform, b.FileName, b.FileType, b.Currency, b.RowCount,
		b.ImportedCount, b.Status, pq.Array(errorList(b.Errors)), b.CreatedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}
	return nil
}

// UpdateImportBatch upserts by id. A stored batch that is already completed
// or errored is left untouched and ErrBatchFinalized is returned.
func (r *ImportBatchRepo) UpdateImportBatch(ctx context.Context, b *domain.ImportBatch) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO import_batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			row_count = EXCLUDED.row_count,
			imported_count = EXCLUDED.imported_count,
			status = EXCLUDED.status,
			errors = EXCLUDED.errors,
			completed_at = EXCLUDED.completed_at
		WHERE import_batches.status NOT IN ('completed', 'error')
	`, b.ID, b.Platform, b.FileName, b.FileType, b.Currency, b.RowCount,
		b.ImportedCount, b.Status, pq.Array(errorList(b.Errors)), b.CreatedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("update import batch: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return revenueimport.ErrBatchFinalized
	}
	return nil
}

func (r *ImportBatchRepo) GetImportBatch(ctx context.Context, id string) (*domain.ImportBatch, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM import_batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, revenueimport.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import batch: %w", err)
	}
	return b, nil
}

func (r *ImportBatchRepo) ListImportBatches(ctx context.Context, f revenueimport.ListFilter) ([]domain.ImportBatch, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if f.Platform != "" {
		where += fmt.Sprintf(" AND platform = $%d", idx)
		args = append(args, f.Platform)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM import_batches`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import batches: %w", err)
	}

	q := `SELECT ` + batchColumns + ` FROM import_batches` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", idx, idx+1)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list import batches: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan import batch: %w", err)
		}
		out = append(out, *b)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(s scanner) (*domain.ImportBatch, error) {
	var (
		b         domain.ImportBatch
		completed sql.NullTime
	)
	if err := s.Scan(
		&b.ID, &b.Platform, &b.FileName, &b.FileType, &b.Currency, &b.RowCount,
		&b.ImportedCount, &b.Status, pq.Array(&b.Errors), &b.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		b.CompletedAt = &t
	}
	if b.Errors == nil {
		b.Errors = []string{}
	}
	return &b, nil
}

func errorList(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return errs
}
