package interfaces

import (
	"context"

	"github.com/ternarybob/docharvest/internal/models"
)

// JobStorage persists Job records and supports the atomic status
// transitions and sweep queries the Supervisor and Scheduler need.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error)
	ListActiveJobs(ctx context.Context) ([]*models.Job, error)
	ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	CountJobs(ctx context.Context) (int, error)
	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)
}

// PdfStorage persists DiscoveredPdf rows keyed by (job_id, source_url).
type PdfStorage interface {
	SavePdf(ctx context.Context, pdf *models.DiscoveredPdf) error
	GetPdf(ctx context.Context, id string) (*models.DiscoveredPdf, error)
	FindByJobAndURL(ctx context.Context, jobID, sourceURL string) (*models.DiscoveredPdf, error)
	UpdatePdf(ctx context.Context, pdf *models.DiscoveredPdf) error
	ListByJob(ctx context.Context, jobID string) ([]*models.DiscoveredPdf, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
}

// ScheduleStorage persists recurring job templates.
type ScheduleStorage interface {
	SaveSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, s *models.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context) ([]*models.Schedule, error)
	ListEnabledSchedules(ctx context.Context) ([]*models.Schedule, error)
}

// JobLogStorage persists the bounded ring buffer of a worker's captured
// stdout/stderr lines.
type JobLogStorage interface {
	AppendLog(ctx context.Context, jobID string, entry models.JobLogEntry) error
	AppendLogs(ctx context.Context, jobID string, entries []models.JobLogEntry) error
	GetLogs(ctx context.Context, jobID string, limit int) ([]models.JobLogEntry, error)
	DeleteLogs(ctx context.Context, jobID string) error
	CountLogs(ctx context.Context, jobID string) (int, error)
}

// StorageManager wires the concrete storages behind a single handle so
// callers obtain every store from one constructed object, mirroring the
// teacher's badger.Manager.
type StorageManager interface {
	Jobs() JobStorage
	Pdfs() PdfStorage
	Schedules() ScheduleStorage
	JobLogs() JobLogStorage
	Close() error
}
