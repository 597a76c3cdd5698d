package server

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/docharvest/internal/models"
)

var structValidator = validator.New()

// errorResponse is the JSON error envelope every non-2xx response uses.
type errorResponse struct {
	Detail string `json:"detail"`
}

// createCrawlJobRequest is the POST /api/crawl-jobs body.
type createCrawlJobRequest struct {
	ManufacturerName string   `json:"manufacturer_name" validate:"required"`
	Domain           string   `json:"domain" validate:"required,url"`
	ProductLines     []string `json:"product_lines"`
	SharePointFolder string   `json:"sharepoint_folder" validate:"required"`
	WeeklyRecrawl    bool     `json:"weekly_recrawl"`
}

// jobResponse mirrors the Job data model for the HTTP boundary.
type jobResponse struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	ManufacturerName string     `json:"manufacturer_name"`
	Source           string     `json:"source"`
	ProductLines     []string   `json:"product_lines"`
	SharePointFolder string     `json:"sharepoint_folder"`
	WeeklyRecrawl    bool       `json:"weekly_recrawl"`
	Status           string     `json:"status"`
	PdfsFound        int        `json:"pdfs_found"`
	PdfsClassified   int        `json:"pdfs_classified"`
	PdfsUploaded     int        `json:"pdfs_uploaded"`
	PdfsFailed       int        `json:"pdfs_failed"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	WorkerPID        int        `json:"worker_pid,omitempty"`
	CancelRequested  bool       `json:"cancel_requested"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	StderrTail       string     `json:"stderr_tail,omitempty"`
}

func toJobResponse(j *models.Job) jobResponse {
	return jobResponse{
		ID:               j.ID,
		Kind:             string(j.Kind),
		ManufacturerName: j.ManufacturerName,
		Source:           j.Source,
		ProductLines:     j.ProductLines,
		SharePointFolder: j.SharePointFolder,
		WeeklyRecrawl:    j.WeeklyRecrawl,
		Status:           string(j.Status),
		PdfsFound:        j.PdfsFound,
		PdfsClassified:   j.PdfsClassified,
		PdfsUploaded:     j.PdfsUploaded,
		PdfsFailed:       j.PdfsFailed,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		FinishedAt:       j.FinishedAt,
		WorkerPID:        j.WorkerPID,
		CancelRequested:  j.CancelRequested,
		FailureReason:    j.FailureReason,
		StderrTail:       j.StderrTail,
	}
}

// pdfResponse mirrors DiscoveredPdf for the HTTP boundary.
type pdfResponse struct {
	ID                 string `json:"id"`
	JobID              string `json:"job_id"`
	SourceURL          string `json:"source_url"`
	Filename           string `json:"filename"`
	FileSize           int64  `json:"file_size"`
	DocumentType       string `json:"document_type"`
	IsTechnical        bool   `json:"is_technical"`
	SharePointUploaded bool   `json:"sharepoint_uploaded"`
	PartNumber         string `json:"part_number,omitempty"`
	Error              string `json:"error,omitempty"`
}

func toPdfResponse(p *models.DiscoveredPdf) pdfResponse {
	return pdfResponse{
		ID:                 p.ID,
		JobID:              p.JobID,
		SourceURL:          p.SourceURL,
		Filename:           p.Filename,
		FileSize:           p.FileSize,
		DocumentType:       string(p.DocumentType),
		IsTechnical:        p.IsTechnical,
		SharePointUploaded: p.SharePointUploaded,
		PartNumber:         p.PartNumber,
		Error:              p.Error,
	}
}

// scheduleResponse mirrors Schedule for the HTTP boundary.
type scheduleResponse struct {
	ID               string     `json:"id"`
	ManufacturerName string     `json:"manufacturer_name"`
	Domain           string     `json:"domain"`
	ProductLines     []string   `json:"product_lines"`
	SharePointFolder string     `json:"sharepoint_folder"`
	Cron             string     `json:"cron"`
	Enabled          bool       `json:"enabled"`
	LastRun          *time.Time `json:"last_run,omitempty"`
	NextRun          *time.Time `json:"next_run,omitempty"`
}

func toScheduleResponse(s *models.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:               s.ID,
		ManufacturerName: s.ManufacturerName,
		Domain:           s.Domain,
		ProductLines:     s.ProductLines,
		SharePointFolder: s.SharePointFolder,
		Cron:             s.Cron,
		Enabled:          s.Enabled,
		LastRun:          s.LastRun,
		NextRun:          s.NextRun,
	}
}

// statsResponse is the GET /api/stats body.
type statsResponse struct {
	TotalJobs      int `json:"total_jobs"`
	ActiveJobs     int `json:"active_jobs"`
	TechnicalPdfs  int `json:"technical_pdfs"`
	UploadedPdfs   int `json:"uploaded_pdfs"`
}
