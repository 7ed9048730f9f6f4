package api

import (
	"net/http"

	"github.com/ignite/metrics-hub/internal/pkg/httputil"
	"github.com/ignite/metrics-hub/internal/service/overview"
)

// GetAccounts lists active social accounts.
//
//	GET /api/accounts?platforms=facebook,instagram
func (h *Handlers) GetAccounts(w http.ResponseWriter, r *http.Request) {
	platforms, err := parsePlatforms(r, "platforms")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	accounts, err := h.overview.Accounts(r.Context(), platforms)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"accounts": accounts,
		"total":    len(accounts),
	})
}

// GetOverview returns the cross-platform roll-up.
//
//	GET /api/overview?start=&end=&platforms=
func (h *Handlers) GetOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := h.overview.ResolveRange(q.Get("start"), q.Get("end"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	platforms, err := parsePlatforms(r, "platforms")
	if err != nil {
		respondServiceError(w, err)
		return
	}

	stats, err := h.overview.Overview(r.Context(), overview.Query{Range: rng, Platforms: platforms})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"range":    rng,
		"overview": stats,
	})
}

func (h *Handlers) GetRevenue(w http.ResponseWriter, r *http.Request) {
	f, err := h.revenueFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	records, err := h.overview.Revenue(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"range":   f.Range,
		"records": records,
		"total":   len(records),
	})
}

func (h *Handlers) GetRevenueSummary(w http.ResponseWriter, r *http.Request) {
	f, err := h.revenueFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	summary, err := h.overview.Summary(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// ExportRevenue downloads the filtered records as CSV.
func (h *Handlers) ExportRevenue(w http.ResponseWriter, r *http.Request) {
	f, err := h.revenueFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	name, body, err := h.overview.Export(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Attachment(w, "text/csv; charset=utf-8", name, body)
}
