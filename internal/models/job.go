package models

import "time"

// JobKind distinguishes a site crawl from a parts-list bulk upload.
type JobKind string

const (
	JobKindCrawl       JobKind = "crawl"
	JobKindBulkUpload  JobKind = "bulk_upload"
)

// JobStatus is a state in the Job state machine.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusCrawling    JobStatus = "crawling"
	JobStatusClassifying JobStatus = "classifying"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusCancelled   JobStatus = "cancelled"
	JobStatusFailed      JobStatus = "failed"
)

// IsTerminal reports whether status is one from which no further transition occurs.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Job represents one run of the harvest pipeline over one source.
type Job struct {
	ID               string    `badgerhold:"key"`
	Kind             JobKind
	ManufacturerName string
	Source           string // seed URL for crawl, parts-list reference for bulk_upload
	ProductLines     []string
	SharePointFolder string
	WeeklyRecrawl    bool
	ScheduleID       string `badgerholdIndex:"ScheduleID"`

	Status JobStatus `badgerholdIndex:"Status"`

	PdfsFound      int
	PdfsClassified int
	PdfsUploaded   int
	PdfsFailed     int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time

	WorkerPID       int
	CancelRequested bool

	// FailureReason carries a short human-readable explanation for a
	// failed/cancelled job (e.g. "worker lost", "seed unreachable").
	FailureReason string
	// StderrTail holds the last lines of the worker's stderr, persisted
	// when the worker exits non-zero so the API can surface it.
	StderrTail string
}

// CanTransitionTo reports whether event moves the Job from its current
// status to a new one per the table in the design notes. It does not
// mutate the Job.
func (j *Job) CanTransitionTo(next JobStatus) bool {
	if j.Status.IsTerminal() {
		return false
	}
	switch j.Status {
	case JobStatusPending:
		return next == JobStatusCrawling || next == JobStatusCancelled || next == JobStatusFailed
	case JobStatusCrawling:
		return next == JobStatusClassifying || next == JobStatusCompleted || next == JobStatusCancelled || next == JobStatusFailed
	case JobStatusClassifying:
		return next == JobStatusUploading || next == JobStatusCancelled || next == JobStatusFailed
	case JobStatusUploading:
		return next == JobStatusCompleted || next == JobStatusCancelled || next == JobStatusFailed
	default:
		return false
	}
}

// DocumentType is the classifier's output vocabulary.
type DocumentType string

const (
	DocumentTypeProductDataSheet     DocumentType = "Product Data Sheet"
	DocumentTypeSpecificationSheet   DocumentType = "Specification Sheet"
	DocumentTypeSubmittalSheet       DocumentType = "Submittal Sheet"
	DocumentTypeTechnicalDataSheet   DocumentType = "Technical Data Sheet"
	DocumentTypeInstallationManual   DocumentType = "Installation Manual"
	DocumentTypeOperationMaintenance DocumentType = "Operation & Maintenance"
	DocumentTypeEngineeringDiagram   DocumentType = "Engineering Diagram"
	DocumentTypeMarketing            DocumentType = "Marketing"
	DocumentTypeUnknown              DocumentType = "Unknown"
)

// UploadAllowList is the set of document types the Uploader may transfer.
var UploadAllowList = map[DocumentType]bool{
	DocumentTypeProductDataSheet:   true,
	DocumentTypeSpecificationSheet: true,
	DocumentTypeSubmittalSheet:     true,
	DocumentTypeTechnicalDataSheet: true,
}

// IsAllowListed reports whether t may be uploaded.
func (t DocumentType) IsAllowListed() bool {
	return UploadAllowList[t]
}

// DiscoveredPdf is one PDF URL discovered during a Job.
type DiscoveredPdf struct {
	ID                 string `badgerhold:"key"`
	JobID              string `badgerholdIndex:"JobID"`
	SourceURL          string
	Filename           string
	FileSize           int64
	DocumentType       DocumentType
	IsTechnical        bool
	SharePointUploaded bool
	PartNumber         string // bulk_upload only

	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArtifactKey is the dedup key used by the Uploader.
type ArtifactKey struct {
	DestinationFolder string
	Filename          string
	SizeBytes         int64
}

// Schedule is a recurring job template fired weekly by the Scheduler.
type Schedule struct {
	ID                      string `badgerhold:"key"`
	ManufacturerName        string
	Domain                  string
	ProductLines            []string
	SharePointFolder        string
	Cron                    string // fixed "0 0 * * 0" — Sunday 00:00 UTC
	Enabled                 bool
	LastRun                 *time.Time
	NextRun                 *time.Time
}

// JobLogEntry is one ring-buffer line of a worker's captured stdout/stderr.
type JobLogEntry struct {
	AssociatedJobID string `badgerholdIndex:"AssociatedJobID"`
	Seq             uint64
	Stream          string // "stdout" | "stderr"
	Line            string
	Level           string
	FullTimestamp   time.Time
}

// WorkerHandle is the Supervisor's transient, in-memory-only record of a
// running job. It is never persisted: a restarted Supervisor holds no
// handles at all, which is what makes orphan sweep on startup unambiguous.
type WorkerHandle struct {
	JobID        string
	PID          int
	ProcessGroup int
	StartedAt    time.Time
	Cancel       func()
}

// BulkUploadRow is one validated row of a parts-list file.
type BulkUploadRow struct {
	PartNumber string `validate:"required"`
	PdfURL     string `validate:"required,url"`
	RowNumber  int
}
