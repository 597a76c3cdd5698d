package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
	"github.com/ternarybob/docharvest/internal/services/crawler"
)

func TestFilenameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://docs.acme.example/sheets/pump%20data.pdf": "pump data.pdf",
		"https://docs.acme.example/sheets/valve.pdf":        "valve.pdf",
		"not a url at all \x7f":                             "not a url at all \x7f",
	}
	for input, want := range cases {
		assert.Equal(t, want, filenameFromURL(input))
	}
}

func TestDownloadPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake content"))
	}))
	defer srv.Close()

	body, err := downloadPDF(context.Background(), srv.Client(), srv.URL, 1024, crawler.NewRetryPolicy(), arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake content", string(body))
}

func TestDownloadPDF_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// 404 is not in the retryable set, so this returns after one attempt.
	_, err := downloadPDF(context.Background(), srv.Client(), srv.URL, 1024, crawler.NewRetryPolicy(), arbor.NewLogger())
	assert.Error(t, err)
}

func TestDownloadPDF_TruncatesAtMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	body, err := downloadPDF(context.Background(), srv.Client(), srv.URL, 5, crawler.NewRetryPolicy(), arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "01234", string(body))
}

func TestTransition_RefusesInvalidMove(t *testing.T) {
	store := newFakeStorageManager()
	job := &models.Job{ID: "job-1", Status: models.JobStatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	store.jobs.byID[job.ID] = job

	w := &worker{jobID: job.ID, storage: store, logger: arbor.NewLogger(), job: job}

	err := w.transition(context.Background(), models.JobStatusUploading)
	assert.Error(t, err, "pending cannot jump straight to uploading")
}

func TestTransition_PersistsValidMove(t *testing.T) {
	store := newFakeStorageManager()
	job := &models.Job{ID: "job-1", Status: models.JobStatusCrawling, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	store.jobs.byID[job.ID] = job

	w := &worker{jobID: job.ID, storage: store, logger: arbor.NewLogger(), job: job}

	require.NoError(t, w.transition(context.Background(), models.JobStatusClassifying))
	assert.Equal(t, models.JobStatusClassifying, store.jobs.byID[job.ID].Status)
}

func TestTerminate_NoOpWhenAlreadyTerminal(t *testing.T) {
	store := newFakeStorageManager()
	job := &models.Job{ID: "job-1", Status: models.JobStatusCompleted, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	store.jobs.byID[job.ID] = job

	w := &worker{jobID: job.ID, storage: store, logger: arbor.NewLogger(), job: job}

	// Already terminal: terminate is a no-op and must not error or overwrite status.
	require.NoError(t, w.terminate(context.Background(), models.JobStatusFailed, "boom"))
	assert.Equal(t, models.JobStatusCompleted, store.jobs.byID[job.ID].Status)
}

func TestTerminate_ClearsWorkerPID(t *testing.T) {
	store := newFakeStorageManager()
	job := &models.Job{ID: "job-1", Status: models.JobStatusUploading, WorkerPID: 4242, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	store.jobs.byID[job.ID] = job

	w := &worker{jobID: job.ID, storage: store, logger: arbor.NewLogger(), job: job}

	require.NoError(t, w.terminate(context.Background(), models.JobStatusCompleted, ""))
	assert.Equal(t, 0, store.jobs.byID[job.ID].WorkerPID, "a terminal job must not carry a stale worker pid")
	assert.NotNil(t, store.jobs.byID[job.ID].FinishedAt)
}

func TestCancelled_ReflectsStoredFlag(t *testing.T) {
	store := newFakeStorageManager()
	job := &models.Job{ID: "job-1", Status: models.JobStatusCrawling}
	store.jobs.byID[job.ID] = job

	w := &worker{jobID: job.ID, storage: store, logger: arbor.NewLogger(), job: job}
	assert.False(t, w.cancelled(context.Background()))

	store.jobs.byID[job.ID].CancelRequested = true
	assert.True(t, w.cancelled(context.Background()))
}

// fakeStorageManager is an in-memory stand-in for interfaces.StorageManager,
// just enough surface for the job state-machine tests above.

type fakeStorageManager struct {
	jobs *fakeJobStorage
	pdfs *fakePdfStorage
}

func newFakeStorageManager() *fakeStorageManager {
	return &fakeStorageManager{
		jobs: &fakeJobStorage{byID: map[string]*models.Job{}},
		pdfs: &fakePdfStorage{byID: map[string]*models.DiscoveredPdf{}},
	}
}

func (f *fakeStorageManager) Jobs() interfaces.JobStorage           { return f.jobs }
func (f *fakeStorageManager) Pdfs() interfaces.PdfStorage           { return f.pdfs }
func (f *fakeStorageManager) Schedules() interfaces.ScheduleStorage { return nil }
func (f *fakeStorageManager) JobLogs() interfaces.JobLogStorage     { return nil }
func (f *fakeStorageManager) Close() error                         { return nil }

type fakeJobStorage struct {
	byID map[string]*models.Job
}

func (f *fakeJobStorage) SaveJob(_ context.Context, job *models.Job) error {
	f.byID[job.ID] = job
	return nil
}

func (f *fakeJobStorage) GetJob(_ context.Context, id string) (*models.Job, error) {
	job, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return job, nil
}

func (f *fakeJobStorage) UpdateJob(_ context.Context, job *models.Job) error {
	f.byID[job.ID] = job
	return nil
}

func (f *fakeJobStorage) DeleteJob(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeJobStorage) ListJobs(_ context.Context, limit, offset int) ([]*models.Job, error) {
	return nil, nil
}

func (f *fakeJobStorage) ListActiveJobs(_ context.Context) ([]*models.Job, error) { return nil, nil }

func (f *fakeJobStorage) ListJobsByStatus(_ context.Context, status models.JobStatus) ([]*models.Job, error) {
	return nil, nil
}

func (f *fakeJobStorage) CountJobs(_ context.Context) (int, error) { return len(f.byID), nil }

func (f *fakeJobStorage) CountJobsByStatus(_ context.Context, status models.JobStatus) (int, error) {
	return 0, nil
}

type fakePdfStorage struct {
	byID map[string]*models.DiscoveredPdf
}

func (f *fakePdfStorage) SavePdf(_ context.Context, pdf *models.DiscoveredPdf) error {
	f.byID[pdf.ID] = pdf
	return nil
}

func (f *fakePdfStorage) GetPdf(_ context.Context, id string) (*models.DiscoveredPdf, error) {
	return f.byID[id], nil
}

func (f *fakePdfStorage) FindByJobAndURL(_ context.Context, jobID, sourceURL string) (*models.DiscoveredPdf, error) {
	for _, p := range f.byID {
		if p.JobID == jobID && p.SourceURL == sourceURL {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePdfStorage) UpdatePdf(_ context.Context, pdf *models.DiscoveredPdf) error {
	f.byID[pdf.ID] = pdf
	return nil
}

func (f *fakePdfStorage) ListByJob(_ context.Context, jobID string) ([]*models.DiscoveredPdf, error) {
	var out []*models.DiscoveredPdf
	for _, p := range f.byID {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePdfStorage) CountByJob(_ context.Context, jobID string) (int, error) {
	count := 0
	for _, p := range f.byID {
		if p.JobID == jobID {
			count++
		}
	}
	return count, nil
}
