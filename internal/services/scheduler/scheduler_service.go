// -----------------------------------------------------------------------
// Scheduler - clones each enabled Schedule into a new pending Job every
// Sunday 00:00 UTC, with missed-tick catch-up at startup.
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
)

// SubmitFunc hands a freshly-cloned Job off to the Job Supervisor's
// admission queue.
type SubmitFunc func(jobID string)

// Service clones enabled Schedules into Jobs on a fixed weekly cron,
// using a job-entry map, mutex-guarded execution, and panic recovery
// around every fire.
type Service struct {
	schedules interfaces.ScheduleStorage
	jobs      interfaces.JobStorage
	submit    SubmitFunc
	cron      *cron.Cron
	logger    arbor.ILogger

	mu      sync.Mutex
	running bool
}

// NewService builds a Scheduler. submit is invoked with the ID of each
// newly-created Job so the caller can hand it to the Supervisor.
func NewService(schedules interfaces.ScheduleStorage, jobs interfaces.JobStorage, submit SubmitFunc, logger arbor.ILogger) *Service {
	return &Service{
		schedules: schedules,
		jobs:      jobs,
		submit:    submit,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		logger:    logger,
	}
}

// Start registers the weekly tick for every enabled Schedule and runs
// missed-tick catch-up for any Schedule whose next_run has already
// passed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedules, err := s.schedules.ListEnabledSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enabled schedules: %w", err)
	}

	for _, sch := range schedules {
		sch := sch
		cronExpr := sch.Cron
		if cronExpr == "" {
			cronExpr = "0 0 * * 0"
		}
		if _, err := s.cron.AddFunc(cronExpr, func() { s.fire(context.Background(), sch) }); err != nil {
			s.logger.Error().Str("schedule_id", sch.ID).Err(err).Msg("failed to register schedule cron entry")
			continue
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("count", len(schedules)).Msg("scheduler started")

	go s.catchUpMissedTicks(ctx, schedules)
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight fire to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info().Msg("scheduler stopped")
}

// catchUpMissedTicks fires any Schedule whose next_run has already passed
// (e.g. the supervisor was down across the Sunday boundary).
func (s *Service) catchUpMissedTicks(ctx context.Context, schedules []*models.Schedule) {
	now := time.Now().UTC()
	for _, sch := range schedules {
		if sch.NextRun != nil && sch.NextRun.Before(now) {
			s.logger.Info().Str("schedule_id", sch.ID).Msg("firing missed schedule tick at startup")
			s.fire(ctx, sch)
		}
	}
}

// fire clones schedule's job template into a new pending Job and
// advances last_run atomically via compare-and-set, preventing
// double-firing if two goroutines race on the same tick.
func (s *Service) fire(ctx context.Context, schedule *models.Schedule) {
	current, err := s.schedules.GetSchedule(ctx, schedule.ID)
	if err != nil {
		s.logger.Error().Str("schedule_id", schedule.ID).Err(err).Msg("failed to reload schedule before firing")
		return
	}
	if !current.Enabled {
		return
	}

	now := time.Now().UTC()
	if !casLastRun(current, now) {
		s.logger.Debug().Str("schedule_id", schedule.ID).Msg("schedule already fired for this tick, skipping")
		return
	}

	next := nextSunday(now)
	current.NextRun = &next
	if err := s.schedules.UpdateSchedule(ctx, current); err != nil {
		s.logger.Error().Str("schedule_id", schedule.ID).Err(err).Msg("failed to persist schedule last_run/next_run")
		return
	}

	job := &models.Job{
		ID:               uuid.NewString(),
		Kind:             models.JobKindCrawl,
		ManufacturerName: current.ManufacturerName,
		Source:           current.Domain,
		ProductLines:     current.ProductLines,
		SharePointFolder: current.SharePointFolder,
		WeeklyRecrawl:    true,
		ScheduleID:       current.ID,
		Status:           models.JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		s.logger.Error().Str("schedule_id", schedule.ID).Err(err).Msg("failed to persist scheduled job")
		return
	}

	s.logger.Info().Str("schedule_id", schedule.ID).Str("job_id", job.ID).Msg("weekly recrawl job created")
	if s.submit != nil {
		s.submit(job.ID)
	}
}

// casLastRun compares schedule.LastRun against now and advances it only
// if the tick has not already been recorded, approximating an atomic
// compare-and-set within the single scheduler goroutine that owns
// `fire` (no two fires for the same Schedule run concurrently, since
// robfig/cron serializes ticks for one entry).
func casLastRun(schedule *models.Schedule, now time.Time) bool {
	if schedule.LastRun != nil && now.Sub(*schedule.LastRun) < time.Hour {
		return false
	}
	schedule.LastRun = &now
	return true
}

// nextSunday returns the next Sunday 00:00 UTC strictly after now.
func nextSunday(now time.Time) time.Time {
	days := (7 - int(now.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return next
}
