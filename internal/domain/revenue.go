package domain

import "time"

// RevenueSource is the provenance tag of a revenue record.
type RevenueSource string

const (
	SourceAPI    RevenueSource = "api"
	SourceCSV    RevenueSource = "csv"
	SourceManual RevenueSource = "manual"
)

// DefaultCurrency is used when an import does not name one.
const DefaultCurrency = "EUR"

// RevenueLimit is the smallest amount the revenue column cannot hold
// (NUMERIC(14,4)).
const RevenueLimit = 1e10

// RevenueRecord is one day of revenue attributed to a platform.
// Optional fields are nil when the source did not report them, which is
// distinct from a reported zero.
type RevenueRecord struct {
	ID                string        `json:"id" db:"id"`
	Platform          Platform      `json:"platform" db:"platform"`
	Date              string        `json:"date" db:"date"` // YYYY-MM-DD
	Revenue           float64       `json:"revenue" db:"revenue"`
	Currency          string        `json:"currency" db:"currency"`
	Impressions       *int64        `json:"impressions,omitempty" db:"impressions"`
	Clicks            *int64        `json:"clicks,omitempty" db:"clicks"`
	CTR               *float64      `json:"ctr,omitempty" db:"ctr"`
	CPM               *float64      `json:"cpm,omitempty" db:"cpm"`
	EstimatedEarnings *float64      `json:"estimated_earnings,omitempty" db:"estimated_earnings"`
	Source            RevenueSource `json:"source" db:"source"`
	BatchID           string        `json:"batch_id,omitempty" db:"batch_id"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

// BatchStatus enumerates the lifecycle of an import batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchError      BatchStatus = "error"
)

// FileType is the coarse kind of an uploaded file, as shown in batch history.
type FileType string

const (
	FileTypeCSV   FileType = "csv"
	FileTypeExcel FileType = "excel"
)

// ImportBatch is the audit record of one uploaded file.
type ImportBatch struct {
	ID            string      `json:"id" db:"id"`
	Platform      Platform    `json:"platform" db:"platform"`
	FileName      string      `json:"file_name" db:"file_name"`
	FileType      FileType    `json:"file_type" db:"file_type"`
	Currency      string      `json:"currency" db:"currency"`
	RowCount      int         `json:"row_count" db:"row_count"`
	ImportedCount int         `json:"imported_count" db:"imported_count"`
	Status        BatchStatus `json:"status" db:"status"`
	Errors        []string    `json:"errors" db:"errors"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// IsTerminal returns true once the batch can no longer change.
func (b *ImportBatch) IsTerminal() bool {
	return b.Status == BatchCompleted || b.Status == BatchError
}

// ErrorCount returns the number of rejected rows.
func (b *ImportBatch) ErrorCount() int {
	return len(b.Errors)
}

// PlatformRevenue is the per-platform slice of a revenue summary.
type PlatformRevenue struct {
	Revenue     float64 `json:"revenue"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Records     int     `json:"records"`
}

// DailyRevenue is one day of revenue broken down by platform.
type DailyRevenue struct {
	Date      string               `json:"date"`
	Total     float64              `json:"total"`
	Platforms map[Platform]float64 `json:"platforms"`
}

// RevenueSummary rolls up the revenue records of a date range.
type RevenueSummary struct {
	Range            DateRange                    `json:"range"`
	TotalRevenue     float64                      `json:"total_revenue"`
	TotalImpressions int64                        `json:"total_impressions"`
	TotalClicks      int64                        `json:"total_clicks"`
	AverageCTR       float64                      `json:"average_ctr"`
	RecordCount      int                          `json:"record_count"`
	Platforms        map[Platform]PlatformRevenue `json:"platforms"`
	Daily            []DailyRevenue               `json:"daily"`
}
