package badger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/common"
	"github.com/ternarybob/docharvest/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	dir, err := os.MkdirTemp("", "docharvest-badger-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: dir})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJobStorage_SaveGetUpdate(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	store := NewJobStorage(db, logger)
	ctx := context.Background()

	job := &models.Job{
		ID:               common.NewJobID(),
		Kind:             models.JobKindCrawl,
		ManufacturerName: "Acme",
		Source:           "https://acme.example.com",
		SharePointFolder: "/Docs/Acme",
		Status:           models.JobStatusPending,
	}

	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.ManufacturerName != "Acme" {
		t.Errorf("expected manufacturer Acme, got %s", got.ManufacturerName)
	}

	got.Status = models.JobStatusCrawling
	got.PdfsFound = 3
	if err := store.UpdateJob(ctx, got); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	updated, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob after update failed: %v", err)
	}
	if updated.Status != models.JobStatusCrawling {
		t.Errorf("expected status crawling, got %s", updated.Status)
	}
	if updated.PdfsFound != 3 {
		t.Errorf("expected pdfs_found 3, got %d", updated.PdfsFound)
	}
}

func TestJobStorage_ListActiveJobs(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	store := NewJobStorage(db, logger)
	ctx := context.Background()

	statuses := []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusCrawling,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	}
	for _, status := range statuses {
		job := &models.Job{
			ID:     common.NewJobID(),
			Kind:   models.JobKindCrawl,
			Status: status,
		}
		if status.IsTerminal() {
			now := time.Now()
			job.FinishedAt = &now
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	active, err := store.ListActiveJobs(ctx)
	if err != nil {
		t.Fatalf("ListActiveJobs failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active jobs (pending+crawling), got %d", len(active))
	}
}

func TestJobStorage_CountJobsByStatus(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	store := NewJobStorage(db, logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := &models.Job{ID: common.NewJobID(), Status: models.JobStatusCompleted}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	count, err := store.CountJobsByStatus(ctx, models.JobStatusCompleted)
	if err != nil {
		t.Fatalf("CountJobsByStatus failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 completed jobs, got %d", count)
	}
}
