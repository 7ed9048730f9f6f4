package api

import (
	"net/http"

	"github.com/ignite/metrics-hub/internal/pkg/httputil"
)

// TriggerSync runs one platform sync round and returns its report. A round
// already running on another worker answers 409 with a skipped report.
//
//	POST /api/sync
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "platform sync is not configured")
		return
	}
	report, err := h.syncer.RunOnce(r.Context())
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, safeErrorMessage(http.StatusInternalServerError, err))
		return
	}
	if report.Skipped {
		httputil.JSON(w, http.StatusConflict, report)
		return
	}
	httputil.OK(w, report)
}
