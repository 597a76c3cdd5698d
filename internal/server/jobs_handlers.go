package server

import (
	"encoding/json"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/docharvest/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// handleCrawlJobsCollection handles GET/POST /api/crawl-jobs.
func (s *Server) handleCrawlJobsCollection(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		func(w http.ResponseWriter, r *http.Request) { s.listJobs(w, r, models.JobKindCrawl) },
		s.createCrawlJob,
	)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request, kind models.JobKind) {
	jobs, err := s.app.StorageManager.Jobs().ListJobs(r.Context(), 0, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		if j.Kind != kind {
			continue
		}
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCrawlJob(w http.ResponseWriter, r *http.Request) {
	var req createCrawlJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := structValidator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	job := &models.Job{
		ID:               uuid.NewString(),
		Kind:             models.JobKindCrawl,
		ManufacturerName: req.ManufacturerName,
		Source:           req.Domain,
		ProductLines:     req.ProductLines,
		SharePointFolder: req.SharePointFolder,
		WeeklyRecrawl:    req.WeeklyRecrawl,
		Status:           models.JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.app.StorageManager.Jobs().SaveJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.app.Supervisor.Submit(job.ID)

	// The weekly Schedule itself is registered by the worker once this Job
	// completes successfully, not here, so a first crawl that fails or is
	// cancelled doesn't leave a recurring schedule behind.

	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

// handleJobItemRoutes dispatches /api/crawl-jobs/{id}[/cancel|/pdfs] and
// /api/bulk-upload-jobs/{id}[/cancel|/pdfs].
func (s *Server) handleJobItemRoutes(w http.ResponseWriter, r *http.Request, prefix string) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "job id required")
		return
	}
	parts := strings.SplitN(rest, "/", 2)
	jobID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.getJob(w, r, jobID)
		return
	}

	switch parts[1] {
	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.cancelJob(w, r, jobID)
	case "pdfs":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.listJobPdfs(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "unknown job sub-resource")
	}
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := s.app.StorageManager.Jobs().GetJob(r.Context(), jobID)
	if err != nil || job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := s.app.Supervisor.Cancel(r.Context(), jobID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listJobPdfs(w http.ResponseWriter, r *http.Request, jobID string) {
	pdfs, err := s.app.StorageManager.Pdfs().ListByJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]pdfResponse, 0, len(pdfs))
	for _, p := range pdfs {
		out = append(out, toPdfResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleActiveJobs handles GET /api/active-jobs.
func (s *Server) handleActiveJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobs, err := s.app.StorageManager.Jobs().ListActiveJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobs, err := s.app.StorageManager.Jobs().ListJobs(r.Context(), 0, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	active, err := s.app.StorageManager.Jobs().ListActiveJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats := statsResponse{TotalJobs: len(jobs), ActiveJobs: len(active)}
	for _, j := range jobs {
		stats.UploadedPdfs += j.PdfsUploaded
		pdfs, err := s.app.StorageManager.Pdfs().ListByJob(r.Context(), j.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, p := range pdfs {
			if p.IsTechnical {
				stats.TechnicalPdfs++
			}
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleBulkUpload handles POST /api/bulk-upload: multipart parts-list
// upload, validated row-by-row.
func (s *Server) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	manufacturer := r.URL.Query().Get("manufacturer_name")
	folder := r.URL.Query().Get("sharepoint_folder")
	if manufacturer == "" || folder == "" {
		writeError(w, http.StatusBadRequest, "manufacturer_name and sharepoint_folder query params are required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	rows, rejected, err := parsePartsList(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse parts list: %v", err))
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "no valid rows in parts list")
		return
	}

	now := time.Now()
	job := &models.Job{
		ID:               uuid.NewString(),
		Kind:             models.JobKindBulkUpload,
		ManufacturerName: manufacturer,
		Source:           fmt.Sprintf("parts-list (%d rows, %d rejected)", len(rows), rejected),
		SharePointFolder: folder,
		Status:           models.JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.app.StorageManager.Jobs().SaveJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, row := range rows {
		pdf := &models.DiscoveredPdf{
			ID:         uuid.NewString(),
			JobID:      job.ID,
			SourceURL:  row.PdfURL,
			Filename:   filenameFromURL(row.PdfURL),
			PartNumber: row.PartNumber,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.app.StorageManager.Pdfs().SavePdf(r.Context(), pdf); err != nil {
			s.app.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to persist bulk-upload row")
		}
	}

	s.app.Supervisor.Submit(job.ID)

	resp := struct {
		jobResponse
		RowsAccepted int `json:"rows_accepted"`
		RowsRejected int `json:"rows_rejected"`
	}{toJobResponse(job), len(rows), rejected}
	writeJSON(w, http.StatusCreated, resp)
}

// parsePartsList reads a CSV parts list: header row skipped; column A =
// part_number (non-empty), column B = pdf_url (must match ^https?://).
func parsePartsList(r io.Reader) ([]models.BulkUploadRow, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows []models.BulkUploadRow
	rejected := 0
	rowNum := 0
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		rowNum++
		if first {
			first = false
			continue
		}
		if len(record) < 2 {
			rejected++
			continue
		}
		partNumber := strings.TrimSpace(record[0])
		pdfURL := strings.TrimSpace(record[1])
		row := models.BulkUploadRow{PartNumber: partNumber, PdfURL: pdfURL, RowNumber: rowNum}
		if err := structValidator.Struct(row); err != nil {
			rejected++
			continue
		}
		if !strings.HasPrefix(pdfURL, "http://") && !strings.HasPrefix(pdfURL, "https://") {
			rejected++
			continue
		}
		rows = append(rows, row)
	}
	return rows, rejected, nil
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	decoded, err := url.PathUnescape(path.Base(u.Path))
	if err != nil {
		return path.Base(u.Path)
	}
	return decoded
}
