package postgres

import (
	"database/sql"

	"github.com/ignite/metrics-hub/internal/platformsync"
	"github.com/ignite/metrics-hub/internal/service/overview"
	"github.com/ignite/metrics-hub/internal/service/revenueimport"
)

// ImportStore implements revenueimport.Repository.
type ImportStore struct {
	*RevenueRepo
	*ImportBatchRepo
}

func NewImportStore(db *sql.DB) *ImportStore {
	return &ImportStore{RevenueRepo: NewRevenueRepo(db), ImportBatchRepo: NewImportBatchRepo(db)}
}

// OverviewStore implements overview.Repository.
type OverviewStore struct {
	*MetricsRepo
	*RevenueRepo
}

func NewOverviewStore(db *sql.DB) *OverviewStore {
	return &OverviewStore{MetricsRepo: NewMetricsRepo(db), RevenueRepo: NewRevenueRepo(db)}
}

var (
	_ revenueimport.Repository = (*ImportStore)(nil)
	_ overview.Repository      = (*OverviewStore)(nil)
	_ platformsync.Store       = (*MetricsRepo)(nil)
)
