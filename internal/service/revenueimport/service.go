package revenueimport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/metrics-hub/internal/datanorm"
	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/metrics"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
	"github.com/ignite/metrics-hub/internal/validation"
)

// storeFailedMessage is appended to a batch whose records could not be stored.
const storeFailedMessage = "Import aborted: records could not be stored"

// Options tunes the import pipeline.
type Options struct {
	DefaultCurrency string
	CheckpointRows  int
	InsertBatchSize int
	PreviewRows     int
	ArchiveUploads  bool
}

func (o *Options) applyDefaults() {
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = domain.DefaultCurrency
	}
	if o.CheckpointRows <= 0 {
		o.CheckpointRows = 500
	}
	if o.InsertBatchSize <= 0 {
		o.InsertBatchSize = 500
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = 5
	}
}

// Service orchestrates revenue imports. It is safe for concurrent use;
// independent batches may be submitted in parallel.
type Service struct {
	repo        Repository
	archive     Archive
	invalidator Invalidator
	opts        Options
	newID       func() string
	now         func() time.Time
}

// NewService creates an import service backed by the given repository.
func NewService(repo Repository, opts Options) *Service {
	opts.applyDefaults()
	return &Service{
		repo:  repo,
		opts:  opts,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// WithArchive enables upload archiving and the batch audit trail.
func (s *Service) WithArchive(a Archive) *Service {
	s.archive = a
	return s
}

// WithInvalidator registers a cache to drop after every finished import.
func (s *Service) WithInvalidator(i Invalidator) *Service {
	s.invalidator = i
	return s
}

// Upload is one file submitted for import. Nil Mappings means auto-map.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	Platform    domain.Platform
	Currency    string
	Mappings    datanorm.Mappings
}

// Preview is what a client needs to confirm a mapping before submitting.
type Preview struct {
	FileName string                                      `json:"file_name"`
	FileType domain.FileType                             `json:"file_type"`
	Columns  []string                                    `json:"columns"`
	Mappings datanorm.Mappings                           `json:"mappings"`
	Ready    bool                                        `json:"ready"`
	Missing  []datanorm.CanonicalField                   `json:"missing"`
	RowCount int                                         `json:"row_count"`
	Rows     []map[datanorm.CanonicalField]datanorm.Cell `json:"rows"`
}

// Preview ingests a file and proposes a mapping without storing anything.
func (s *Service) Preview(ctx context.Context, fileName, contentType string, data []byte) (*Preview, error) {
	kind, table, err := s.read(fileName, contentType, data)
	if err != nil {
		return nil, err
	}
	mappings := datanorm.AutoMap(table.Columns)
	return &Preview{
		FileName: fileName,
		FileType: kind.FileType(),
		Columns:  table.Columns,
		Mappings: mappings,
		Ready:    mappings.IsReady(),
		Missing:  mappings.MissingRequired(),
		RowCount: len(table.Rows),
		Rows:     datanorm.Project(table.Rows, mappings, s.opts.PreviewRows),
	}, nil
}

// Submit imports a file. Unsupported or unreadable files and incomplete
// mappings fail before a batch exists. Otherwise the finished batch is
// returned; rejected rows are listed in its Errors.
func (s *Service) Submit(ctx context.Context, u Upload) (*domain.ImportBatch, error) {
	started := s.now()
	if !u.Platform.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPlatform, u.Platform)
	}
	kind, table, err := s.read(u.FileName, u.ContentType, u.Data)
	if err != nil {
		return nil, err
	}
	mappings, err := resolveMappings(u.Mappings, table.Columns)
	if err != nil {
		return nil, err
	}

	batch := &domain.ImportBatch{
		ID:        s.newID(),
		Platform:  u.Platform,
		FileName:  strings.ToValidUTF8(u.FileName, "\uFFFD"),
		FileType:  kind.FileType(),
		Currency:  s.currency(u.Currency),
		RowCount:  len(table.Rows),
		Status:    domain.BatchProcessing,
		Errors:    []string{},
		CreatedAt: started.UTC(),
	}
	if err := s.repo.InsertImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create import batch: %w", err)
	}
	logger.Info("import started", "batch_id", batch.ID, "platform", string(batch.Platform),
		"file", batch.FileName, "rows", batch.RowCount)
	s.archiveUpload(ctx, batch, u.Data)

	norm := datanorm.NewNormalizer(
		datanorm.WithIDFunc(s.newID),
		datanorm.WithClock(s.now),
		datanorm.WithProgress(s.opts.CheckpointRows, func(done, total int) {
			logger.Debug("import normalized rows", "batch_id", batch.ID, "processed", done, "total", total)
		}),
	)
	res, err := norm.Normalize(table.Rows, mappings, batch.Platform, batch.Currency)
	if err != nil {
		return s.abort(ctx, batch, started, err)
	}
	batch.Errors = res.Messages()
	for i := range res.Records {
		res.Records[i].BatchID = batch.ID
	}

	if err := s.store(ctx, batch, res.Records); err != nil {
		return s.abort(ctx, batch, started, err)
	}
	batch.Status = terminalStatus(batch.ImportedCount, len(batch.Errors))
	if err := s.finish(ctx, batch, started); err != nil {
		return batch, err
	}
	return batch, nil
}

// store inserts records in chunks and checkpoints the batch every
// CheckpointRows stored records.
func (s *Service) store(ctx context.Context, batch *domain.ImportBatch, records []domain.RevenueRecord) error {
	lastCheckpoint := 0
	for start := 0; start < len(records); start += s.opts.InsertBatchSize {
		end := start + s.opts.InsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.repo.InsertRevenueRecords(ctx, records[start:end]); err != nil {
			return fmt.Errorf("insert records %d-%d: %w", start+1, end, err)
		}
		batch.ImportedCount = end

		if end < len(records) && end-lastCheckpoint >= s.opts.CheckpointRows {
			lastCheckpoint = end
			if err := s.repo.UpdateImportBatch(ctx, batch); err != nil {
				logger.Warn("import checkpoint failed", "batch_id", batch.ID, "error", err)
			}
		}
	}
	return nil
}

// abort finalizes a batch that could not be stored and returns the cause.
func (s *Service) abort(ctx context.Context, batch *domain.ImportBatch, started time.Time, cause error) (*domain.ImportBatch, error) {
	logger.Error("import failed", "batch_id", batch.ID, "imported", batch.ImportedCount, "error", cause)
	batch.Errors = append(batch.Errors, storeFailedMessage)
	batch.Status = domain.BatchError
	if err := s.finish(ctx, batch, started); err != nil {
		logger.Error("import batch not finalized", "batch_id", batch.ID, "error", err)
	}
	return batch, fmt.Errorf("import batch %s: %w", batch.ID, cause)
}

func (s *Service) finish(ctx context.Context, batch *domain.ImportBatch, started time.Time) error {
	completed := s.now().UTC()
	batch.CompletedAt = &completed
	if err := s.repo.UpdateImportBatch(ctx, batch); err != nil {
		return fmt.Errorf("finalize import batch %s: %w", batch.ID, err)
	}

	if s.archive != nil {
		if err := s.archive.RecordBatch(ctx, batch); err != nil {
			logger.Warn("import audit failed", "batch_id", batch.ID, "error", err)
		}
	}
	if s.invalidator != nil && batch.ImportedCount > 0 {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			logger.Warn("overview cache invalidation failed", "error", err)
		}
	}

	metrics.RecordImport(string(batch.Platform), string(batch.Status), batch.ImportedCount, batch.ErrorCount(), completed.Sub(started))
	logger.Info("import finished", "batch_id", batch.ID, "status", string(batch.Status),
		"imported", batch.ImportedCount, "rejected", batch.ErrorCount())
	return nil
}

func (s *Service) archiveUpload(ctx context.Context, batch *domain.ImportBatch, data []byte) {
	if s.archive == nil || !s.opts.ArchiveUploads {
		return
	}
	key, err := s.archive.ArchiveUpload(ctx, batch.ID, batch.FileName, data)
	if err != nil {
		logger.Warn("upload archive failed", "batch_id", batch.ID, "error", err)
		return
	}
	logger.Debug("upload archived", "batch_id", batch.ID, "key", key)
}

func (s *Service) read(fileName, contentType string, data []byte) (datanorm.FileKind, *datanorm.Table, error) {
	kind, err := datanorm.DetectKind(fileName, contentType)
	if err != nil {
		return "", nil, err
	}
	table, err := datanorm.Ingest(data, kind)
	if err != nil {
		return "", nil, err
	}
	return kind, table, nil
}

func (s *Service) currency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return s.opts.DefaultCurrency
	}
	return c
}

// resolveMappings validates client mappings against the file's columns, or
// auto-maps when none were given.
func resolveMappings(given datanorm.Mappings, columns []string) (datanorm.Mappings, error) {
	if given == nil {
		auto := datanorm.AutoMap(columns)
		if missing := auto.MissingRequired(); len(missing) > 0 {
			return nil, fmt.Errorf("%w: missing %v", datanorm.ErrMappingIncomplete, missing)
		}
		return auto, nil
	}
	if err := given.Validate(); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	for _, m := range given {
		if !known[m.Column] {
			return nil, fmt.Errorf("%w: column %q is not in the file", datanorm.ErrUnknownColumn, m.Column)
		}
	}
	return given, nil
}

// terminalStatus is error only when every row was rejected. A file with no
// data rows at all completes.
func terminalStatus(imported, rejected int) domain.BatchStatus {
	if imported == 0 && rejected > 0 {
		return domain.BatchError
	}
	return domain.BatchCompleted
}

// Get returns one batch with its errors.
func (s *Service) Get(ctx context.Context, id string) (*domain.ImportBatch, error) {
	return s.repo.GetImportBatch(ctx, id)
}

// List returns batch history, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.ImportBatch, int, error) {
	return s.repo.ListImportBatches(ctx, filter)
}

// ManualEntry is a single revenue figure typed in by a user.
type ManualEntry struct {
	Platform          string   `json:"platform" validate:"required,platform"`
	Date              string   `json:"date" validate:"required,isodate"`
	Revenue           *float64 `json:"revenue" validate:"required,gte=0,lt=10000000000"`
	Currency          string   `json:"currency" validate:"omitempty,iso4217"`
	Impressions       *int64   `json:"impressions" validate:"omitempty,gte=0"`
	Clicks            *int64   `json:"clicks" validate:"omitempty,gte=0"`
	CTR               *float64 `json:"ctr" validate:"omitempty,gte=0"`
	CPM               *float64 `json:"cpm" validate:"omitempty,gte=0"`
	EstimatedEarnings *float64 `json:"estimated_earnings" validate:"omitempty,gte=0"`
}

// AddManual validates and stores one manual revenue record. Validation
// failures are returned as *validation.Error.
func (s *Service) AddManual(ctx context.Context, e ManualEntry) (*domain.RevenueRecord, error) {
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
	if err := validation.Struct(e); err != nil {
		return nil, err
	}
	platform, _ := domain.ParsePlatform(e.Platform)
	rec := domain.RevenueRecord{
		ID:                s.newID(),
		Platform:          platform,
		Date:              e.Date,
		Revenue:           *e.Revenue,
		Currency:          s.currency(e.Currency),
		Impressions:       e.Impressions,
		Clicks:            e.Clicks,
		CTR:               e.CTR,
		CPM:               e.CPM,
		EstimatedEarnings: e.EstimatedEarnings,
		Source:            domain.SourceManual,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.repo.InsertRevenueRecords(ctx, []domain.RevenueRecord{rec}); err != nil {
		return nil, fmt.Errorf("insert manual revenue: %w", err)
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			logger.Warn("overview cache invalidation failed", "error", err)
		}
	}
	return &rec, nil
}
