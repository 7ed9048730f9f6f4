package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ignite/metrics-hub/internal/datanorm"
	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/pkg/httputil"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
	"github.com/ignite/metrics-hub/internal/service/revenueimport"
)

var errNoFile = errors.New(`multipart field "file" is required`)

// uploadedFile is the "file" part of a multipart request.
type uploadedFile struct {
	name        string
	contentType string
	data        []byte
}

// readUpload parses a multipart form capped at the configured upload size.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (*uploadedFile, bool) {
	maxBytes := h.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return nil, false
		}
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, errNoFile.Error())
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Failed to read upload")
		return nil, false
	}
	return &uploadedFile{
		name:        header.Filename,
		contentType: header.Header.Get("Content-Type"),
		data:        data,
	}, true
}

// PreviewImport proposes a column mapping and shows the first rows.
//
//	POST /api/imports/preview (multipart "file")
func (h *Handlers) PreviewImport(w http.ResponseWriter, r *http.Request) {
	f, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	preview, err := h.imports.Preview(r.Context(), f.name, f.contentType, f.data)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, preview)
}

// SubmitImport imports a revenue file. The optional "mappings" field is a
// JSON array of {column, field}; without it columns are auto-mapped.
//
//	POST /api/imports (multipart "file", "platform", "currency", "mappings")
func (h *Handlers) SubmitImport(w http.ResponseWriter, r *http.Request) {
	f, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	platform, valid := domain.ParsePlatform(r.FormValue("platform"))
	if !valid {
		httputil.BadRequest(w, "platform is required and must be a supported platform")
		return
	}

	var mappings datanorm.Mappings
	if raw := strings.TrimSpace(r.FormValue("mappings")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			httputil.BadRequest(w, "invalid mappings: "+err.Error())
			return
		}
		if mappings == nil {
			mappings = datanorm.Mappings{}
		}
	}

	batch, err := h.imports.Submit(r.Context(), revenueimport.Upload{
		FileName:    f.name,
		ContentType: f.contentType,
		Data:        f.data,
		Platform:    platform,
		Currency:    r.FormValue("currency"),
		Mappings:    mappings,
	})
	if err != nil {
		if batch != nil {
			// The batch exists but storing its records failed.
			logger.Error("import aborted", "batch_id", batch.ID, "error", err)
			httputil.ErrorDetails(w, http.StatusInternalServerError, "import_aborted",
				"records could not be stored", batch)
			return
		}
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, batch)
}

// ListImports returns batch history, newest first.
//
//	GET /api/imports?page=&limit=&platform=&status=
func (h *Handlers) ListImports(w http.ResponseWriter, r *http.Request) {
	params := ParsePagination(r, 20, 100)
	filter := revenueimport.ListFilter{Limit: params.Limit, Offset: params.Offset}

	if v := r.URL.Query().Get("platform"); v != "" {
		p, ok := domain.ParsePlatform(v)
		if !ok {
			respondServiceError(w, domain.ErrUnknownPlatform)
			return
		}
		filter.Platform = p
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = domain.BatchStatus(strings.ToLower(v))
	}

	batches, total, err := h.imports.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if batches == nil {
		batches = []domain.ImportBatch{}
	}
	httputil.OK(w, NewPaginatedResponse(batches, params, total))
}

func (h *Handlers) GetImport(w http.ResponseWriter, r *http.Request) {
	batch, err := h.imports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, batch)
}

// DownloadTemplate serves the example revenue CSV for a platform.
//
//	GET /api/imports/template?platform=youtube
func (h *Handlers) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.ParsePlatform(r.URL.Query().Get("platform"))
	if !ok {
		httputil.BadRequest(w, "platform is required and must be a supported platform")
		return
	}
	httputil.Attachment(w, "text/csv; charset=utf-8", datanorm.TemplateFileName(p), []byte(datanorm.TemplateCSV))
}

// AddRevenue stores one manually entered revenue record.
//
//	POST /api/revenue
func (h *Handlers) AddRevenue(w http.ResponseWriter, r *http.Request) {
	var entry revenueimport.ManualEntry
	if !httputil.Decode(w, r, &entry) {
		return
	}
	rec, err := h.imports.AddManual(r.Context(), entry)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, rec)
}
