package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/models"
)

func TestNextSunday(t *testing.T) {
	// Wednesday 2026-07-29 -> next Sunday is 2026-08-02.
	wed := time.Date(2026, time.July, 29, 15, 0, 0, 0, time.UTC)
	got := nextSunday(wed)
	want := time.Date(2026, time.August, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextSunday(%v) = %v, want %v", wed, got, want)
	}
}

func TestNextSunday_OnSundayRollsToNextWeek(t *testing.T) {
	sun := time.Date(2026, time.August, 2, 1, 0, 0, 0, time.UTC)
	got := nextSunday(sun)
	want := time.Date(2026, time.August, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextSunday(%v) = %v, want %v", sun, got, want)
	}
}

func TestCasLastRun_PreventsDoubleFireWithinAnHour(t *testing.T) {
	now := time.Now().UTC()
	sch := &models.Schedule{ID: "s1", LastRun: &now}

	if casLastRun(sch, now.Add(10*time.Minute)) {
		t.Error("expected casLastRun to reject a second fire within the same hour")
	}
	if !casLastRun(sch, now.Add(2*time.Hour)) {
		t.Error("expected casLastRun to allow a fire more than an hour after the last one")
	}
}

type fakeScheduleStorage struct {
	schedules map[string]*models.Schedule
}

func (f *fakeScheduleStorage) SaveSchedule(ctx context.Context, s *models.Schedule) error {
	f.schedules[s.ID] = s
	return nil
}
func (f *fakeScheduleStorage) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	return f.schedules[id], nil
}
func (f *fakeScheduleStorage) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	f.schedules[s.ID] = s
	return nil
}
func (f *fakeScheduleStorage) DeleteSchedule(ctx context.Context, id string) error {
	delete(f.schedules, id)
	return nil
}
func (f *fakeScheduleStorage) ListSchedules(ctx context.Context) ([]*models.Schedule, error) {
	return f.all(), nil
}
func (f *fakeScheduleStorage) ListEnabledSchedules(ctx context.Context) ([]*models.Schedule, error) {
	var out []*models.Schedule
	for _, s := range f.schedules {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeScheduleStorage) all() []*models.Schedule {
	out := make([]*models.Schedule, 0, len(f.schedules))
	for _, s := range f.schedules {
		out = append(out, s)
	}
	return out
}

type fakeJobStorageForScheduler struct {
	saved []*models.Job
}

func (f *fakeJobStorageForScheduler) SaveJob(ctx context.Context, job *models.Job) error {
	f.saved = append(f.saved, job)
	return nil
}
func (f *fakeJobStorageForScheduler) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return nil, nil
}
func (f *fakeJobStorageForScheduler) UpdateJob(ctx context.Context, job *models.Job) error { return nil }
func (f *fakeJobStorageForScheduler) DeleteJob(ctx context.Context, id string) error        { return nil }
func (f *fakeJobStorageForScheduler) ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	return nil, nil
}
func (f *fakeJobStorageForScheduler) ListActiveJobs(ctx context.Context) ([]*models.Job, error) {
	return nil, nil
}
func (f *fakeJobStorageForScheduler) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	return nil, nil
}
func (f *fakeJobStorageForScheduler) CountJobs(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeJobStorageForScheduler) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	return 0, nil
}

func TestFire_ClonesScheduleIntoPendingJob(t *testing.T) {
	scheduleStore := &fakeScheduleStorage{schedules: map[string]*models.Schedule{
		"s1": {ID: "s1", ManufacturerName: "Acme", Domain: "https://acme.example.com", Enabled: true, Cron: "0 0 * * 0"},
	}}
	jobStore := &fakeJobStorageForScheduler{}

	var submittedID string
	svc := NewService(scheduleStore, jobStore, func(id string) { submittedID = id }, arbor.NewLogger())

	svc.fire(context.Background(), scheduleStore.schedules["s1"])

	if len(jobStore.saved) != 1 {
		t.Fatalf("expected exactly 1 job to be created, got %d", len(jobStore.saved))
	}
	job := jobStore.saved[0]
	if job.ManufacturerName != "Acme" || job.Status != models.JobStatusPending || !job.WeeklyRecrawl {
		t.Errorf("unexpected cloned job: %+v", job)
	}
	if submittedID != job.ID {
		t.Errorf("expected submit callback with job ID %q, got %q", job.ID, submittedID)
	}
	if scheduleStore.schedules["s1"].LastRun == nil {
		t.Error("expected last_run to be set after firing")
	}
}

func TestFire_SkipsDisabledSchedule(t *testing.T) {
	scheduleStore := &fakeScheduleStorage{schedules: map[string]*models.Schedule{
		"s1": {ID: "s1", Enabled: false},
	}}
	jobStore := &fakeJobStorageForScheduler{}
	svc := NewService(scheduleStore, jobStore, nil, arbor.NewLogger())

	svc.fire(context.Background(), scheduleStore.schedules["s1"])

	if len(jobStore.saved) != 0 {
		t.Errorf("expected no job created for a disabled schedule, got %d", len(jobStore.saved))
	}
}
