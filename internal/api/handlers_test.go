package api

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/metrics-hub/internal/aggregate"
	"github.com/ignite/metrics-hub/internal/config"
	"github.com/ignite/metrics-hub/internal/domain"
	"github.com/ignite/metrics-hub/internal/platformsync"
	"github.com/ignite/metrics-hub/internal/service/overview"
	"github.com/ignite/metrics-hub/internal/service/revenueimport"
)

// hubStore is an in-memory repository serving both services.
type hubStore struct {
	mu       sync.Mutex
	accounts []domain.SocialAccount
	entries  []domain.PlatformMetricEntry
	revenue  []domain.RevenueRecord
	batches  map[string]domain.ImportBatch
}

func newHubStore() *hubStore {
	return &hubStore{batches: make(map[string]domain.ImportBatch)}
}

func matches(ps []domain.Platform, p domain.Platform) bool {
	if len(ps) == 0 {
		return true
	}
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}

func (s *hubStore) InsertRevenueRecords(_ context.Context, records []domain.RevenueRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revenue = append(s.revenue, records...)
	return nil
}

func (s *hubStore) InsertImportBatch(_ context.Context, b *domain.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = *b
	return nil
}

func (s *hubStore) UpdateImportBatch(_ context.Context, b *domain.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.batches[b.ID]; ok && cur.IsTerminal() {
		return revenueimport.ErrBatchFinalized
	}
	s.batches[b.ID] = *b
	return nil
}

func (s *hubStore) GetImportBatch(_ context.Context, id string) (*domain.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, revenueimport.ErrNotFound
	}
	return &b, nil
}

func (s *hubStore) ListImportBatches(_ context.Context, f revenueimport.ListFilter) ([]domain.ImportBatch, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImportBatch
	for _, b := range s.batches {
		if f.Platform != "" && b.Platform != f.Platform {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (s *hubStore) ListAccounts(_ context.Context, f overview.AccountFilter) ([]domain.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SocialAccount
	for _, a := range s.accounts {
		if (!f.ActiveOnly || a.IsActive) && matches(f.Platforms, a.Platform) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *hubStore) QueryMetricEntries(_ context.Context, ids []string, rng domain.DateRange) ([]domain.PlatformMetricEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.PlatformMetricEntry
	for _, e := range s.entries {
		if want[e.AccountID] && rng.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *hubStore) ListRevenue(_ context.Context, f overview.RevenueFilter) ([]domain.RevenueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RevenueRecord
	for _, r := range s.revenue {
		if matches(f.Platforms, r.Platform) && f.Range.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSyncer struct {
	report *platformsync.Report
	err    error
}

func (f *fakeSyncer) RunOnce(context.Context) (*platformsync.Report, error) {
	return f.report, f.err
}

func newTestRouter(t *testing.T, store *hubStore, syncer SyncRunner) http.Handler {
	t.Helper()
	imports := revenueimport.NewService(store, revenueimport.Options{})
	ov := overview.NewService(store, aggregate.New(aggregate.EngagementRatioOfSums), overview.Options{})
	cfg := config.Default()
	h := NewHandlers(imports, ov, syncer, cfg.Imports)
	return SetupRoutes(h, nil, cfg.Server.AllowedOrigins)
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

const januaryCSV = "Date,Revenue,Impressions\n" +
	"2024-01-05,10.50,100\n" +
	"06/01/2024,20,200\n" +
	"bad,abc,1\n"

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, newHubStore(), nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	decodeBody(t, rec, &response)
	assert.Contains(t, response, "status")
	assert.Contains(t, response, "checks")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var live map[string]interface{}
	decodeBody(t, rec, &live)
	assert.Equal(t, "alive", live["status"])
}

func TestSubmitImportAndHistory(t *testing.T) {
	store := newHubStore()
	router := newTestRouter(t, store, nil)

	rec := serve(router, multipartRequest(t, "/api/imports", "january.csv", januaryCSV,
		map[string]string{"platform": "YouTube", "currency": "usd"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var batch domain.ImportBatch
	decodeBody(t, rec, &batch)
	assert.Equal(t, domain.PlatformYouTube, batch.Platform)
	assert.Equal(t, domain.BatchCompleted, batch.Status)
	assert.Equal(t, 3, batch.RowCount)
	assert.Equal(t, 2, batch.ImportedCount)
	assert.Equal(t, []string{"Row 3: invalid date format (bad)"}, batch.Errors)
	assert.Len(t, store.revenue, 2)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/imports/"+batch.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.ImportBatch
	decodeBody(t, rec, &got)
	assert.Equal(t, batch.ID, got.ID)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/imports?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data       []domain.ImportBatch `json:"data"`
		Pagination PaginationMeta       `json:"pagination"`
	}
	decodeBody(t, rec, &page)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.Pagination.Total)
	assert.False(t, page.Pagination.HasMore)
}

func TestSubmitImportWithMappings(t *testing.T) {
	store := newHubStore()
	router := newTestRouter(t, store, nil)

	csv := "Jour,Montant\n2024-01-02,5\n"
	mappings := `[{"column":"Jour","field":"date"},{"column":"Montant","field":"revenue"}]`
	rec := serve(router, multipartRequest(t, "/api/imports", "x.csv", csv,
		map[string]string{"platform": "adsense", "mappings": mappings}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, store.revenue, 1)
	assert.Equal(t, 5.0, store.revenue[0].Revenue)
	assert.Equal(t, domain.DefaultCurrency, store.revenue[0].Currency)
}

func TestSubmitImportRejected(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
		fields   map[string]string
		status   int
		code     string
	}{
		{"unsupported format", "notes.txt", "x", map[string]string{"platform": "facebook"}, http.StatusBadRequest, "unsupported_format"},
		{"unknown platform", "a.csv", januaryCSV, map[string]string{"platform": "myspace"}, http.StatusBadRequest, ""},
		{"no file", "", "", map[string]string{"platform": "facebook"}, http.StatusBadRequest, ""},
		{"mapping incomplete", "a.csv", "Jour,Montant\n2024-01-01,1\n", map[string]string{"platform": "facebook"}, http.StatusBadRequest, "mapping_incomplete"},
		{"unknown column", "a.csv", januaryCSV, map[string]string{"platform": "facebook",
			"mappings": `[{"column":"Day","field":"date"},{"column":"Revenue","field":"revenue"}]`}, http.StatusBadRequest, "unknown_column"},
		{"bad mappings json", "a.csv", januaryCSV, map[string]string{"platform": "facebook", "mappings": "{"}, http.StatusBadRequest, ""},
		{"empty file", "a.csv", "", map[string]string{"platform": "facebook"}, http.StatusBadRequest, "parse_failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newHubStore()
			router := newTestRouter(t, store, nil)

			rec := serve(router, multipartRequest(t, "/api/imports", tt.fileName, tt.content, tt.fields))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				var body map[string]interface{}
				decodeBody(t, rec, &body)
				assert.Equal(t, tt.code, body["code"])
			}
			assert.Empty(t, store.batches)
		})
	}
}

func TestPreviewImport(t *testing.T) {
	router := newTestRouter(t, newHubStore(), nil)

	rec := serve(router, multipartRequest(t, "/api/imports/preview", "january.csv", januaryCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview struct {
		Columns  []string                 `json:"columns"`
		Ready    bool                     `json:"ready"`
		RowCount int                      `json:"row_count"`
		Rows     []map[string]interface{} `json:"rows"`
	}
	decodeBody(t, rec, &preview)
	assert.Equal(t, []string{"Date", "Revenue", "Impressions"}, preview.Columns)
	assert.True(t, preview.Ready)
	assert.Equal(t, 3, preview.RowCount)
	require.Len(t, preview.Rows, 3)
	assert.Equal(t, "2024-01-05", preview.Rows[0]["date"])
}

func TestGetImportNotFound(t *testing.T) {
	router := newTestRouter(t, newHubStore(), nil)
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/imports/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadTemplate(t *testing.T) {
	router := newTestRouter(t, newHubStore(), nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/imports/template?platform=tiktok", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "template_tiktok_revenus.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Date,Revenu,Impressions,Clics,CTR,CPM,Gains_Estimes\n"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/imports/template", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func fixtureStore() *hubStore {
	store := newHubStore()
	store.accounts = []domain.SocialAccount{
		{ID: "fb-1", Platform: domain.PlatformFacebook, Name: "Page", IsActive: true},
		{ID: "ig-1", Platform: domain.PlatformInstagram, Name: "Brand", IsActive: true},
	}
	store.entries = []domain.PlatformMetricEntry{
		{AccountID: "fb-1", Platform: domain.PlatformFacebook, MetricType: domain.MetricViews, Value: 400, Date: "2024-01-10"},
		{AccountID: "ig-1", Platform: domain.PlatformInstagram, MetricType: domain.MetricLikes, Value: 30, Date: "2024-01-11"},
	}
	store.revenue = []domain.RevenueRecord{
		{ID: "r2", Platform: domain.PlatformYouTube, Date: "2024-01-20", Revenue: 20.5, Currency: "EUR", Source: domain.SourceCSV},
		{ID: "r1", Platform: domain.PlatformFacebook, Date: "2024-01-03", Revenue: 10, Currency: "EUR", Source: domain.SourceManual},
		{ID: "r3", Platform: domain.PlatformFacebook, Date: "2024-02-01", Revenue: 99, Currency: "EUR", Source: domain.SourceCSV},
	}
	return store
}

func TestGetOverview(t *testing.T) {
	router := newTestRouter(t, fixtureStore(), nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/overview?start=2024-01-01&end=2024-01-31", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Range    domain.DateRange     `json:"range"`
		Overview domain.OverviewStats `json:"overview"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, domain.DateRange{Start: "2024-01-01", End: "2024-01-31"}, body.Range)
	assert.Equal(t, 400.0, body.Overview.TotalViews)
	assert.Equal(t, 30.0, body.Overview.TotalLikes)
	assert.InDelta(t, 30.5, body.Overview.TotalRevenue, 1e-9)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/overview?start=2024-01-01&end=2024-01-31&platforms=instagram", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &body)
	assert.Equal(t, 0.0, body.Overview.TotalViews)
	assert.Equal(t, 30.0, body.Overview.TotalLikes)
}

func TestOverviewBadQuery(t *testing.T) {
	router := newTestRouter(t, fixtureStore(), nil)

	tests := []struct {
		query string
		code  string
	}{
		{"start=01-2024", "invalid_range"},
		{"end=yesterday", "invalid_range"},
		{"platforms=facebook,myspace", "unknown_platform"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/overview?"+tt.query, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]interface{}
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestGetAccounts(t *testing.T) {
	router := newTestRouter(t, fixtureStore(), nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/accounts?platforms=facebook", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Accounts []domain.SocialAccount `json:"accounts"`
		Total    int                    `json:"total"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "fb-1", body.Accounts[0].ID)
}

func TestRevenueEndpoints(t *testing.T) {
	router := newTestRouter(t, fixtureStore(), nil)
	const jan = "start=2024-01-01&end=2024-01-31"

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/revenue?"+jan, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Records []domain.RevenueRecord `json:"records"`
		Total   int                    `json:"total"`
	}
	decodeBody(t, rec, &list)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "r1", list.Records[0].ID, "sorted by date")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/revenue/summary?"+jan+"&platform=facebook", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.RevenueSummary
	decodeBody(t, rec, &summary)
	assert.Equal(t, 10.0, summary.TotalRevenue)
	assert.Equal(t, 1, summary.RecordCount)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/revenue/export?"+jan, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "revenus_2024-01-01_2024-01-31.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Plateforme,Revenu,Impressions,Clics,CTR,CPM", strings.TrimSpace(lines[0]))
}

func TestAddRevenue(t *testing.T) {
	store := newHubStore()
	router := newTestRouter(t, store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/revenue",
		strings.NewReader(`{"platform":"adsense","date":"2024-01-09","revenue":12.5}`))
	rec := serve(router, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, store.revenue, 1)
	assert.Equal(t, domain.SourceManual, store.revenue[0].Source)

	req = httptest.NewRequest(http.MethodPost, "/api/revenue",
		strings.NewReader(`{"platform":"adsense","date":"09/01/2024","revenue":-1}`))
	rec = serve(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Code    string `json:"code"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "validation_failed", body.Code)
	fields := make([]string, len(body.Details))
	for i, d := range body.Details {
		fields[i] = d.Field
	}
	assert.ElementsMatch(t, []string{"date", "revenue"}, fields)
	assert.Len(t, store.revenue, 1)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/revenue", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSync(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		syncer SyncRunner
		status int
	}{
		{"not configured", nil, http.StatusServiceUnavailable},
		{"ok", &fakeSyncer{report: &platformsync.Report{StartedAt: now, Synced: 2}}, http.StatusOK},
		{"skipped", &fakeSyncer{report: &platformsync.Report{StartedAt: now, Skipped: true}}, http.StatusConflict},
		{"failed", &fakeSyncer{err: errors.New("list accounts: pq: connection refused")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, newHubStore(), tt.syncer)
			rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, newHubStore(), nil)
	serve(router, httptest.NewRequest(http.MethodGet, "/api/imports/nope", nil))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hub_api_requests_total{method="GET",route="/api/imports/{id}",status="404"}`)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query              string
		page, limit, offst int
	}{
		{"", 1, 20, 0},
		{"page=3&limit=10", 3, 10, 20},
		{"page=-1&limit=500", 1, 100, 0},
		{"page=x&limit=y", 1, 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := ParsePagination(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil), 20, 100)
			assert.Equal(t, PaginationParams{Page: tt.page, Limit: tt.limit, Offset: tt.offst}, p)
		})
	}

	resp := NewPaginatedResponse([]int{}, PaginationParams{Page: 1, Limit: 20}, 0)
	assert.Equal(t, 1, resp.Pagination.TotalPages)
	resp = NewPaginatedResponse([]int{}, PaginationParams{Page: 1, Limit: 20}, 41)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasMore)
}

func TestSafeErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("dial tcp 10.0.0.1:5432: connection refused"), "Service temporarily unavailable"},
		{errors.New("context deadline exceeded"), "Request timed out"},
		{errors.New("pq: relation does not exist"), "A database error occurred"},
		{errors.New("putting object to S3: denied"), "A storage error occurred"},
		{errors.New("boom"), "An internal error occurred"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeErrorMessage(http.StatusInternalServerError, tt.err))
	}
	assert.Equal(t, "bad input", safeErrorMessage(http.StatusBadRequest, errors.New("bad input")))
}
