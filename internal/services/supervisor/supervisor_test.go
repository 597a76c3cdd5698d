package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
)

type fakeJobStorage struct {
	jobs map[string]*models.Job
}

func newFakeJobStorage() *fakeJobStorage { return &fakeJobStorage{jobs: make(map[string]*models.Job)} }

func (f *fakeJobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	f.jobs[job.ID] = job
	return nil
}
func (f *fakeJobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return j, nil
}
func (f *fakeJobStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	f.jobs[job.ID] = job
	return nil
}
func (f *fakeJobStorage) DeleteJob(ctx context.Context, id string) error {
	delete(f.jobs, id)
	return nil
}
func (f *fakeJobStorage) ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	return f.allJobs(), nil
}
func (f *fakeJobStorage) ListActiveJobs(ctx context.Context) ([]*models.Job, error) {
	var out []*models.Job
	for _, j := range f.jobs {
		if !j.Status.IsTerminal() {
			out = append(out, j)
		}
	}
	return out, nil
}
func (f *fakeJobStorage) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	var out []*models.Job
	for _, j := range f.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}
func (f *fakeJobStorage) CountJobs(ctx context.Context) (int, error) { return len(f.jobs), nil }
func (f *fakeJobStorage) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	jobs, _ := f.ListJobsByStatus(ctx, status)
	return len(jobs), nil
}
func (f *fakeJobStorage) allJobs() []*models.Job {
	out := make([]*models.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

// fakeStorageManager implements interfaces.StorageManager with an
// in-memory JobStorage; Pdfs/Schedules/JobLogs are unused by the
// Supervisor paths under test here.
type fakeStorageManager struct {
	jobs interfaces.JobStorage
}

func (f *fakeStorageManager) Jobs() interfaces.JobStorage           { return f.jobs }
func (f *fakeStorageManager) Pdfs() interfaces.PdfStorage           { return nil }
func (f *fakeStorageManager) Schedules() interfaces.ScheduleStorage { return nil }
func (f *fakeStorageManager) JobLogs() interfaces.JobLogStorage     { return nil }
func (f *fakeStorageManager) Close() error                          { return nil }

func newTestSupervisor(jobs *fakeJobStorage) *Supervisor {
	return &Supervisor{
		cfg:     Config{MaxConcurrentJobs: 8, WorkerGraceSeconds: 10},
		storage: &fakeStorageManager{jobs: jobs},
		logger:  arbor.NewLogger(),
		handles: make(map[string]*models.WorkerHandle),
	}
}

func TestSweep_MarksOrphanedJobsFailed(t *testing.T) {
	jobs := newFakeJobStorage()
	jobs.jobs["job-1"] = &models.Job{ID: "job-1", Status: models.JobStatusCrawling}
	jobs.jobs["job-2"] = &models.Job{ID: "job-2", Status: models.JobStatusCompleted}

	sup := newTestSupervisor(jobs)

	if err := sup.Sweep(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if jobs.jobs["job-1"].Status != models.JobStatusFailed {
		t.Errorf("expected non-terminal job to be marked failed, got %s", jobs.jobs["job-1"].Status)
	}
	if jobs.jobs["job-1"].FailureReason != "worker lost" {
		t.Errorf("expected failure reason 'worker lost', got %q", jobs.jobs["job-1"].FailureReason)
	}
	if jobs.jobs["job-2"].Status != models.JobStatusCompleted {
		t.Errorf("expected already-terminal job to be left untouched, got %s", jobs.jobs["job-2"].Status)
	}
}

func TestCancel_RejectsTerminalJob(t *testing.T) {
	jobs := newFakeJobStorage()
	jobs.jobs["job-1"] = &models.Job{ID: "job-1", Status: models.JobStatusCompleted}

	sup := newTestSupervisor(jobs)

	if err := sup.Cancel(context.Background(), "job-1"); err == nil {
		t.Error("expected an error cancelling an already-terminal job")
	}
}

func TestCancel_SetsCancelRequestedWithoutRunningHandle(t *testing.T) {
	jobs := newFakeJobStorage()
	jobs.jobs["job-1"] = &models.Job{ID: "job-1", Status: models.JobStatusCrawling}

	sup := newTestSupervisor(jobs)

	if err := sup.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !jobs.jobs["job-1"].CancelRequested {
		t.Error("expected cancel_requested to be set")
	}
}

func TestSupervisor_HandleRegistration(t *testing.T) {
	sup := New(Config{}, nil, arbor.NewLogger())
	sup.registerHandle(&models.WorkerHandle{JobID: "job-1", PID: 123, StartedAt: time.Now()})
	if _, ok := sup.handles["job-1"]; !ok {
		t.Fatal("expected handle to be registered")
	}
	sup.unregisterHandle("job-1")
	if _, ok := sup.handles["job-1"]; ok {
		t.Error("expected handle to be removed after unregister")
	}
}
