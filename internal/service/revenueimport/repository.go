package revenueimport

import (
	"context"

	"github.com/ignite/metrics-hub/internal/domain"
)

// Repository defines the data access contract for imports.
type Repository interface {
	// InsertRevenueRecords appends records. Inserts from concurrent batches
	// must not conflict.
	InsertRevenueRecords(ctx context.Context, records []domain.RevenueRecord) error

	// InsertImportBatch stores a new batch.
	InsertImportBatch(ctx context.Context, b *domain.ImportBatch) error

	// UpdateImportBatch upserts a batch by id. Returns ErrBatchFinalized if
	// the stored batch is already terminal.
	UpdateImportBatch(ctx context.Context, b *domain.ImportBatch) error

	// GetImportBatch returns ErrNotFound if the batch does not exist.
	GetImportBatch(ctx context.Context, id string) (*domain.ImportBatch, error)

	// ListImportBatches returns batches newest first plus the total count.
	ListImportBatches(ctx context.Context, filter ListFilter) ([]domain.ImportBatch, int, error)
}

// ListFilter controls pagination and filtering for batch history.
type ListFilter struct {
	Platform domain.Platform
	Status   domain.BatchStatus
	Limit    int
	Offset   int
}

// Archive keeps a copy of uploads and an audit trail of finished batches.
type Archive interface {
	ArchiveUpload(ctx context.Context, batchID, fileName string, data []byte) (string, error)
	RecordBatch(ctx context.Context, b *domain.ImportBatch) error
}

// Invalidator drops derived views that new revenue makes stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
