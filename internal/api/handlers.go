package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ignite/metrics-hub/internal/config"
	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/platformsync"
	"github.com/ignite/metrics-hub/internal/service/overview"
	"github.com/ignite/metrics-hub/internal/service/revenueimport"
)

// SyncRunner runs one platform sync round on demand.
type SyncRunner interface {
	RunOnce(ctx context.Context) (*platformsync.Report, error)
}

// Handlers contains all HTTP handlers of the hub.
type Handlers struct {
	imports  *revenueimport.Service
	overview *overview.Service
	syncer   SyncRunner
	cfg      config.ImportsConfig
}

// NewHandlers creates the handler set. syncer may be nil, in which case
// POST /api/sync answers 503.
func NewHandlers(imports *revenueimport.Service, ov *overview.Service, syncer SyncRunner, cfg config.ImportsConfig) *Handlers {
	return &Handlers{imports: imports, overview: ov, syncer: syncer, cfg: cfg}
}

// parsePlatforms reads a comma separated platform list from the query.
// Unknown names are an error.
func parsePlatforms(r *http.Request, param string) ([]domain.Platform, error) {
	platforms, unknown := domain.ParsePlatforms(r.URL.Query().Get(param))
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlatform, strings.Join(unknown, ", "))
	}
	return platforms, nil
}

// revenueFilter reads start, end and platform from the query.
func (h *Handlers) revenueFilter(r *http.Request) (overview.RevenueFilter, error) {
	q := r.URL.Query()
	rng, err := h.overview.ResolveRange(q.Get("start"), q.Get("end"))
	if err != nil {
		return overview.RevenueFilter{}, err
	}
	platforms, err := parsePlatforms(r, "platform")
	if err != nil {
		return overview.RevenueFilter{}, err
	}
	return overview.RevenueFilter{Range: rng, Platforms: platforms}, nil
}
