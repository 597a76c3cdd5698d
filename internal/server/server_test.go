package server_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docharvest/internal/app"
	"github.com/ternarybob/docharvest/internal/common"
	"github.com/ternarybob/docharvest/internal/server"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Store.Badger.Path = t.TempDir()
	cfg.Scheduler.Enabled = false
	cfg.Supervisor.WorkerBinaryPath = "/nonexistent/docharvest-worker"
	cfg.Supervisor.MaxConcurrentJobs = 2

	logger := arbor.NewLogger()

	application, err := app.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	return server.New(application)
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCrawlJobLifecycle(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"manufacturer_name": "Acme Valves",
		"domain":             "https://docs.acme.example",
		"product_lines":      []string{"valves"},
		"sharepoint_folder":  "/Acme",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/crawl-jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	jobID, ok := created["id"].(string)
	require.True(t, ok, "response should carry a job id")
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pending", created["status"])

	req = httptest.NewRequest(http.MethodGet, "/api/crawl-jobs/"+jobID, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/crawl-jobs/"+jobID+"/pdfs", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCrawlJobRejectsInvalidDomain(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"manufacturer_name": "Acme Valves",
		"domain":             "not-a-url",
		"sharepoint_folder":  "/Acme",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/crawl-jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp["detail"])
}

func TestBulkUploadRejectsMissingFile(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/bulk-upload?manufacturer_name=Acme&sharepoint_folder=/Acme", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkUploadCreatesJobFromPartsList(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "parts.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("part_number,pdf_url\nPN-1,https://docs.acme.example/pn-1.pdf\nPN-2,not-a-url\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/bulk-upload?manufacturer_name=Acme&sharepoint_folder=/Acme", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["rows_accepted"])
	assert.Equal(t, float64(1), resp["rows_rejected"])
}

func TestScheduleCRUD(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/schedules", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/schedules/does-not-exist", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsReflectsCreatedJobs(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"manufacturer_name": "Acme Valves",
		"domain":             "https://docs.acme.example",
		"sharepoint_folder":  "/Acme",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/crawl-jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["total_jobs"])
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "no such route", errResp["detail"])
}
